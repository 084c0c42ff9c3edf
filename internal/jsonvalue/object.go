package jsonvalue

// Member is a single key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

// Object is an insertion-ordered JSON object with unique keys.
type Object struct {
	members []Member
	index   map[string]int
}

// NewObject creates an empty object with room for n members.
func NewObject(n int) *Object {
	return &Object{
		members: make([]Member, 0, n),
		index:   make(map[string]int, n),
	}
}

// Len returns the number of members.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.members)
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Value{}, false
	}
	i, ok := o.index[key]
	if !ok {
		return Value{}, false
	}
	return o.members[i].Value, true
}

// Set stores value under key. An existing key keeps its position and
// takes the new value; a new key is appended.
func (o *Object) Set(key string, value Value) {
	if i, ok := o.index[key]; ok {
		o.members[i].Value = value
		return
	}
	o.index[key] = len(o.members)
	o.members = append(o.members, Member{Key: key, Value: value})
}

// Members returns the members in insertion order. Callers must not modify
// the returned slice.
func (o *Object) Members() []Member {
	if o == nil {
		return nil
	}
	return o.members
}

// Keys returns the member keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.Len())
	for _, m := range o.Members() {
		keys = append(keys, m.Key)
	}
	return keys
}

func (o *Object) equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	for i, m := range o.Members() {
		om := other.members[i]
		if m.Key != om.Key || !m.Value.Equal(om.Value) {
			return false
		}
	}
	return true
}
