package conn

// Space and Index are pure ergonomics over Connection's request
// methods, letting callers write conn.Space(sid).Index(iid).Select(...)
// instead of threading space/index ids through every call. They hold no
// state beyond the ids and are not part of the connection's state model
// (spec section 4.5).
type Space struct {
	conn    Connection
	spaceID uint32
}

// Index binds an index id within this space.
func (s Space) Index(indexID uint32) Index {
	return Index{space: s, indexID: indexID}
}

// Insert requests INSERT into this space.
func (s Space) Insert(tuple []any) (uint64, error) { return s.conn.Insert(s.spaceID, tuple) }

// Replace requests REPLACE into this space.
func (s Space) Replace(tuple []any) (uint64, error) { return s.conn.Replace(s.spaceID, tuple) }

// Index scopes SELECT/UPDATE/DELETE to one index of a Space. Its Upsert
// sends only the space id and the caller's index base.
type Index struct {
	space   Space
	indexID uint32
}

// Select requests SELECT against this index.
func (i Index) Select(key []any, limit, offset uint32, iterator uint32) (uint64, error) {
	return i.space.conn.Select(i.space.spaceID, i.indexID, limit, offset, iterator, key)
}

// Update requests UPDATE against this index.
func (i Index) Update(key, ops []any) (uint64, error) {
	return i.space.conn.Update(i.space.spaceID, i.indexID, key, ops)
}

// Delete requests DELETE against this index.
func (i Index) Delete(key []any) (uint64, error) {
	return i.space.conn.Delete(i.space.spaceID, i.indexID, key)
}

// Upsert requests UPSERT in this index's space with the given index base;
// the index id bound by Space.Index is not sent.
func (i Index) Upsert(tuple, ops []any, indexBase uint32) (uint64, error) {
	return i.space.conn.Upsert(i.space.spaceID, indexBase, tuple, ops)
}
