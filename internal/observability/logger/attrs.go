package logger

import "log/slog"

// Common attribute keys for consistent logging across the gateway

// Request attributes
func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Method(method string) slog.Attr {
	return slog.String("method", method)
}

func Path(path string) slog.Attr {
	return slog.String("path", path)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}

func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

func Duration(ms int64) slog.Attr {
	return slog.Int64("duration_ms", ms)
}

// Identity attributes
func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func SessionID(id string) slog.Attr {
	return slog.String("session_id", id)
}

// Domain attributes
func TenantSlug(slug string) slog.Attr {
	return slog.String("tenant_slug", slug)
}

func EngagementID(id int) slog.Attr {
	return slog.Int("engagement_id", id)
}

func Plan(plan string) slog.Attr {
	return slog.String("route_plan", plan)
}

func Predicate(name string) slog.Attr {
	return slog.String("predicate", name)
}

func Decision(d string) slog.Attr {
	return slog.String("decision", d)
}

// Error attributes
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Component attributes
func Component(name string) slog.Attr {
	return slog.String("component", name)
}
