package service

// normalizePage mirrors the repository clamping so pagination metadata in
// responses matches the rows actually returned.
func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultSize
	}
	return page, pageSize
}
