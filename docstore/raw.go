package docstore

// KeyAttribute holds the key of a Raw document.
const KeyAttribute = "_key"

// Raw is an untyped document. Its key is the string value of the _key
// attribute.
type Raw map[string]any

func (r Raw) DocumentKey() string {
	k, _ := r[KeyAttribute].(string)
	return k
}
