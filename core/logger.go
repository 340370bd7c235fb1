package core

// Logger is implemented by every log sink used by the apps.
// args are free-form: errors, map[string]interface{} extras, or the acting principal.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
