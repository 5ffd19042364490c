package ui

// Field is an ordered key/value pair shown in headers, panels and result
// boxes. Order is preserved so store fields print in layout order.
type Field struct {
	Key   string
	Value string
}

// F is shorthand for building a Field.
func F(key, value string) Field {
	return Field{Key: key, Value: value}
}

func renderFields(fields []Field, indent string) []string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		key := ResultKeyStyle.Render(indent + f.Key + ":")
		lines = append(lines, key+" "+ResultValueStyle.Render(f.Value))
	}
	return lines
}
