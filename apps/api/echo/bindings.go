package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/maraakiz/maraakiz/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// pathID parses an integer path parameter. Anything else cannot match a row: 404.
func pathID(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// queryDecimal returns def when the parameter is missing.
func queryDecimal(ctx echo.Context, name string, def decimal.Decimal) (decimal.Decimal, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return def, core.NewFieldError(name, "must be a number")
	}
	return d, nil
}

// queryInt returns 0 for a missing or malformed parameter.
func queryInt(ctx echo.Context, name string) int {
	v, _ := strconv.Atoi(ctx.QueryParam(name))
	return v
}

func queryBool(ctx echo.Context, name string) bool {
	v, _ := strconv.ParseBool(ctx.QueryParam(name))
	return v
}

func queryDate(ctx echo.Context, name string) (core.Date, error) {
	val := ctx.QueryParam(name)
	if val == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(val)
	if err != nil {
		return core.Date{}, core.NewFieldError(name, "must be a date formatted as YYYY-MM-DD")
	}
	return d, nil
}

// splitList splits a comma separated form value, dropping the blanks.
func splitList(val string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// bindUpload opens the multipart file of field. The returned func closes it.
func bindUpload(ctx echo.Context, field string) (core.Upload, func(), error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		return core.Upload{}, nil, core.NewFieldError(field, "this field is required")
	}
	f, err := fh.Open()
	if err != nil {
		return core.Upload{}, nil, core.NewFieldError(field, "the file could not be read")
	}
	up := core.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}
	return up, func() { _ = f.Close() }, nil
}
