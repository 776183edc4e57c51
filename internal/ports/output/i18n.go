package output

// T renders bot messages. Keys are dotted message ids such as
// "create.title_prompt"; data fills the template fields and may be nil.
type T interface {
	T(locale, key string, data map[string]any) string
}
