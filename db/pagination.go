package db

import "gorm.io/gorm"

const (
	maxPageSize     = 1000
	defaultPageSize = 25
)

// Pagination is embedded in every list filter across the package.
type Pagination struct {
	Page     int
	PageSize int
}

func (p *Pagination) GetData() (offset int, limit int) {
	if p.Page == 0 {
		p.Page = 1
	}
	switch {
	case p.PageSize > maxPageSize:
		p.PageSize = maxPageSize
	case p.PageSize <= 0:
		p.PageSize = defaultPageSize
	}

	offset = (p.Page - 1) * p.PageSize
	return offset, p.PageSize
}

// Paginate is a gorm scope applying Pagination to a query. A zero
// PageSize skips pagination entirely (returns all matching records),
// which internal recovery/monitor queries rely on.
func Paginate(p *Pagination) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if p.PageSize == 0 {
			return db
		}
		offset, pageSize := p.GetData()
		return db.Offset(offset).Limit(pageSize)
	}
}
