package formula

// StringTable interns the text of String cells and the messages of Error
// cells. IDs are reference counted; 0 is never issued.
type StringTable struct {
	ids    map[string]uint32
	values map[uint32]string
	refs   map[uint32]int
	nextID uint32
}

func NewStringTable() *StringTable {
	return &StringTable{
		ids:    make(map[string]uint32),
		values: make(map[uint32]string),
		refs:   make(map[uint32]int),
		nextID: 1,
	}
}

// Intern returns the ID of s, adding one reference.
func (st *StringTable) Intern(s string) uint32 {
	if id, ok := st.ids[s]; ok {
		st.refs[id]++
		return id
	}
	id := st.nextID
	st.nextID++
	st.ids[s] = id
	st.values[id] = s
	st.refs[id] = 1
	return id
}

func (st *StringTable) Get(id uint32) (string, bool) {
	s, ok := st.values[id]
	return s, ok
}

// Release drops one reference and forgets the string when none remain.
func (st *StringTable) Release(id uint32) {
	if _, ok := st.values[id]; !ok {
		return
	}
	st.refs[id]--
	if st.refs[id] > 0 {
		return
	}
	delete(st.ids, st.values[id])
	delete(st.values, id)
	delete(st.refs, id)
}

func (st *StringTable) Count() int {
	return len(st.values)
}

// References is the sum of all reference counts.
func (st *StringTable) References() int {
	total := 0
	for _, n := range st.refs {
		total += n
	}
	return total
}
