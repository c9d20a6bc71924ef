//go:build !no_automation

package automation

import (
	"context"
	"log/slog"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// datetimeFields are the components system.datetime can return.
var datetimeFields = map[string]func(time.Time) lua.LValue{
	"hour":      func(t time.Time) lua.LValue { return lua.LNumber(t.Hour()) },
	"minute":    func(t time.Time) lua.LValue { return lua.LNumber(t.Minute()) },
	"second":    func(t time.Time) lua.LValue { return lua.LNumber(t.Second()) },
	"weekday":   func(t time.Time) lua.LValue { return lua.LNumber(t.Weekday()) },
	"day":       func(t time.Time) lua.LValue { return lua.LNumber(t.Day()) },
	"month":     func(t time.Time) lua.LValue { return lua.LNumber(t.Month()) },
	"year":      func(t time.Time) lua.LValue { return lua.LNumber(t.Year()) },
	"timestamp": func(t time.Time) lua.LValue { return lua.LNumber(t.Unix()) },
	"time_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.TimeOnly)) },
	"date_str":  func(t time.Time) lua.LValue { return lua.LString(t.Format(time.DateOnly)) },
}

func registerSystemModule(L *lua.LState, e *Engine) {
	mod := L.NewTable()
	mod.RawSetString("datetime", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		field, ok := datetimeFields[name]
		if !ok {
			L.ArgError(1, "unknown component: "+name)
			return 0
		}
		L.Push(field(e.now()))
		return 1
	}))
	mod.RawSetString("time_between", L.NewFunction(func(L *lua.LState) int { return timeBetween(L, e) }))
	mod.RawSetString("log", L.NewFunction(func(L *lua.LState) int {
		var level slog.Level
		if err := level.UnmarshalText([]byte(L.CheckString(1))); err != nil {
			level = slog.LevelInfo
		}
		e.logger.Log(context.Background(), level, "script log", "msg", L.CheckString(2))
		return 0
	}))
	L.SetGlobal("system", mod)
}

// timeBetween implements system.time_between(from, to). Bounds are hours
// (numbers) or "HH:MM" strings; the range is [from, to) in minutes of the
// day and wraps past midnight when from > to. Grow lights and pumps are
// scheduled this way.
func timeBetween(L *lua.LState, e *Engine) int {
	from := dayMinute(L, 1)
	to := dayMinute(L, 2)
	now := e.now()
	cur := now.Hour()*60 + now.Minute()

	in := cur >= from && cur < to
	if from > to {
		in = cur >= from || cur < to
	}
	L.Push(lua.LBool(in))
	return 1
}

func dayMinute(L *lua.LState, n int) int {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		h := int(v)
		if h < 0 || h > 24 {
			L.ArgError(n, "hour out of range")
		}
		return h * 60
	case lua.LString:
		t, err := time.Parse("15:04", string(v))
		if err != nil {
			L.ArgError(n, "want HH:MM")
		}
		return t.Hour()*60 + t.Minute()
	}
	L.ArgError(n, "want an hour or \"HH:MM\"")
	return 0
}
