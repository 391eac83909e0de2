package log

import "time"

// Logger provides structured logging capabilities.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field.
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error". A nil error yields a field
// the adapters skip.
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value.
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// With returns a logger that prepends fields to every entry.
func With(l Logger, fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	if z, ok := l.(*ZerologAdapter); ok {
		ctx := z.logger.With()
		for _, f := range fields {
			ctx = ctx.Interface(f.Key, f.Value)
		}
		return &ZerologAdapter{logger: ctx.Logger()}
	}
	return &prefixed{base: l, fields: fields}
}

// prefixed decorates an arbitrary Logger with fixed fields.
type prefixed struct {
	base   Logger
	fields []Field
}

func (p *prefixed) join(fields []Field) []Field {
	out := make([]Field, 0, len(p.fields)+len(fields))
	out = append(out, p.fields...)
	return append(out, fields...)
}

func (p *prefixed) Debug(msg string, fields ...Field) { p.base.Debug(msg, p.join(fields)...) }
func (p *prefixed) Info(msg string, fields ...Field)  { p.base.Info(msg, p.join(fields)...) }
func (p *prefixed) Warn(msg string, fields ...Field)  { p.base.Warn(msg, p.join(fields)...) }
func (p *prefixed) Error(msg string, fields ...Field) { p.base.Error(msg, p.join(fields)...) }
