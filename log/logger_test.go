package log

import "testing"

func TestLoggerContextInherited(t *testing.T) {
	var got *Record
	parent := New("component", "test")
	parent.SetHandler(FuncHandler(func(r *Record) { got = r }))
	child := parent.New("shard", 3)
	child.Info("hello")

	if got == nil {
		t.Fatal("Info should have logged a record")
	}
	want := []interface{}{"component", "test", "shard", 3}
	if len(got.Ctx) != len(want) {
		t.Fatalf("Ctx = %v, want %v", got.Ctx, want)
	}
	for i := range want {
		if got.Ctx[i] != want[i] {
			t.Fatalf("Ctx[%d] = %v, want %v", i, got.Ctx[i], want[i])
		}
	}
}

func TestLoggerLevelsSetMsgAndLvl(t *testing.T) {
	tests := []struct {
		log  func(Logger, string)
		want Lvl
	}{
		{func(l Logger, m string) { l.Trace(m) }, LvlTrace},
		{func(l Logger, m string) { l.Debug(m) }, LvlDebug},
		{func(l Logger, m string) { l.Info(m) }, LvlInfo},
		{func(l Logger, m string) { l.Warn(m) }, LvlWarn},
		{func(l Logger, m string) { l.Error(m) }, LvlError},
	}
	for _, tt := range tests {
		var got *Record
		l := New()
		l.SetHandler(FuncHandler(func(r *Record) { got = r }))
		tt.log(l, "msg")
		if got == nil {
			t.Fatalf("level %v: no record logged", tt.want)
		}
		if got.Lvl != tt.want {
			t.Errorf("Lvl = %v, want %v", got.Lvl, tt.want)
		}
		if got.Msg != "msg" {
			t.Errorf("Msg = %q, want %q", got.Msg, "msg")
		}
	}
}

func TestLoggerOddContextGetsErrorKey(t *testing.T) {
	var got *Record
	l := New()
	l.SetHandler(FuncHandler(func(r *Record) { got = r }))
	l.Info("msg", "onlykey")

	found := false
	for i := 0; i < len(got.Ctx); i += 2 {
		if got.Ctx[i] == errorKey {
			found = true
		}
	}
	if !found {
		t.Error("an odd-length context should be padded with an errorKey pair")
	}
}

func TestLvlFromString(t *testing.T) {
	tests := map[string]Lvl{
		"trace": LvlTrace,
		"debug": LvlDebug,
		"info":  LvlInfo,
		"warn":  LvlWarn,
		"error": LvlError,
		"crit":  LvlCrit,
	}
	for s, want := range tests {
		got, err := LvlFromString(s)
		if err != nil {
			t.Errorf("LvlFromString(%q): %v", s, err)
		}
		if got != want {
			t.Errorf("LvlFromString(%q) = %v, want %v", s, got, want)
		}
	}
	if _, err := LvlFromString("bogus"); err == nil {
		t.Error("LvlFromString should reject an unknown level name")
	}
}

func TestCtxToArray(t *testing.T) {
	c := Ctx{"a": 1}
	arr := c.toArray()
	if len(arr) != 2 || arr[0] != "a" || arr[1] != 1 {
		t.Errorf("toArray() = %v, want [a 1]", arr)
	}
}
