package domain

// OrderPair returns two user IDs in canonical (lexicographic) order so a
// symmetric relation always resolves to one storage row. Every create,
// lookup, and delete path over friendships and private rooms must go through
// this helper rather than comparing inline.
func OrderPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
