package lifecycle

import "container/list"

// tier is an ordered container of objects keyed by id. Insertion order is
// preserved so demotion ties resolve to the longest-resident member.
type tier struct {
	order *list.List // *entry values, oldest at the front
	index map[string]*list.Element
}

type entry struct {
	id  string
	obj Object
}

func newTier() *tier {
	return &tier{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

func (t *tier) len() int { return len(t.index) }

func (t *tier) has(id string) bool {
	_, ok := t.index[id]
	return ok
}

func (t *tier) get(id string) (Object, bool) {
	el, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*entry).obj, true
}

// insert appends at the back of the order. The caller guarantees the id is
// not already present in this tier.
func (t *tier) insert(id string, obj Object) {
	t.index[id] = t.order.PushBack(&entry{id: id, obj: obj})
}

// remove detaches and returns the object for id, if present.
func (t *tier) remove(id string) (Object, bool) {
	el, ok := t.index[id]
	if !ok {
		return nil, false
	}
	delete(t.index, id)
	t.order.Remove(el)
	return el.Value.(*entry).obj, true
}

// ids returns the member ids in container order.
func (t *tier) ids() []string {
	out := make([]string, 0, t.order.Len())
	for el := t.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry).id)
	}
	return out
}
