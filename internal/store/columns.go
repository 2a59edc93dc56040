package store

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/me/mdconsole/pkg/model"
)

// idListColumn stores a model.IDList as its comma-joined form.
type idListColumn struct {
	p *model.IDList
}

func (c idListColumn) Value() (driver.Value, error) {
	return c.p.String(), nil
}

func (c idListColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.p = nil
	case string:
		*c.p = model.ParseIDList(v)
	case []byte:
		*c.p = model.ParseIDList(string(v))
	default:
		return fmt.Errorf("scan id list: unsupported type %T", src)
	}
	return nil
}

// optionalID maps 0 to NULL so optional foreign keys stay valid.
type optionalID struct {
	p *int64
}

func (c optionalID) Value() (driver.Value, error) {
	if *c.p == 0 {
		return nil, nil
	}
	return *c.p, nil
}

func (c optionalID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c.p = 0
	case int64:
		*c.p = v
	default:
		return fmt.Errorf("scan optional id: unsupported type %T", src)
	}
	return nil
}

// timestamp stores a time as RFC 3339 text, like every other time column.
type timestamp struct {
	p *time.Time
}

func (c timestamp) Value() (driver.Value, error) {
	return c.p.UTC().Format(time.RFC3339Nano), nil
}

func (c timestamp) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*c.p = time.Time{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		*c.p = v
		return nil
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", src)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("scan timestamp: %w", err)
	}
	*c.p = t
	return nil
}

// columnValue turns a scan destination back into an argument for INSERT
// and UPDATE statements.
func columnValue(dest any) any {
	switch v := dest.(type) {
	case *string:
		return *v
	case *int64:
		return *v
	case driver.Valuer:
		return v
	}
	panic(fmt.Sprintf("store: unsupported column type %T", dest))
}
