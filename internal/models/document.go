package models

// Collection names used by the record store.
const (
	CollectionStudents   = "students"
	CollectionAttendance = "attendance"
)

// Document is a stored record: a flat field map plus the store-assigned id.
type Document struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

// Field returns the first non-empty value among the given aliases.
func (d Document) Field(aliases ...string) interface{} {
	for _, key := range aliases {
		if v, ok := d.Fields[key]; ok && v != nil && v != "" {
			return v
		}
	}
	return nil
}
