package content

// References returns the set of hosted media URLs owned by an article with
// the given cover and body: the cover first, then image blocks in order, each
// URL once. hosted decides which URLs denote hosted media; a nil hosted
// accepts every non-empty URL.
//
// raw may be any form accepted by Decode. If the body cannot be parsed the
// cover is still returned together with the parse error, which callers log;
// extraction itself never fails.
func References(cover string, raw any, hosted func(string) bool) ([]string, error) {
	accept := func(u string) bool {
		return u != "" && (hosted == nil || hosted(u))
	}

	seen := make(map[string]struct{})
	var refs []string
	add := func(u string) {
		if !accept(u) {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		refs = append(refs, u)
	}

	add(cover)
	doc, err := Decode(raw)
	for _, u := range doc.MediaURLs() {
		add(u)
	}
	return refs, err
}
