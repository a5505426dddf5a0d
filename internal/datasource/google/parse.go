package google

import (
	"fmt"
	"strconv"
	"strings"

	"cashflow/internal/core"

	"github.com/shopspring/decimal"
)

// rowError describes a sheet row that could not be read.
type rowError struct {
	Row int
	Err error
}

func (e rowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// maxReportedRows caps how many bad rows a sheetRowsError spells out.
const maxReportedRows = 10

// sheetRowsError reports every unreadable row of one sheet. It matches
// core.ErrInvalidInput.
type sheetRowsError struct {
	Sheet string
	Rows  []rowError
}

func (e *sheetRowsError) Error() string {
	parts := make([]string, 0, min(len(e.Rows), maxReportedRows))
	for i, r := range e.Rows {
		if i == maxReportedRows {
			break
		}
		parts = append(parts, r.Error())
	}
	msg := fmt.Sprintf("sheet %s: %d malformed rows: %s", e.Sheet, len(e.Rows), strings.Join(parts, "; "))
	if extra := len(e.Rows) - maxReportedRows; extra > 0 {
		msg += fmt.Sprintf("; and %d more", extra)
	}
	return msg
}

func (e *sheetRowsError) Unwrap() error { return core.ErrInvalidInput }

// rowsErr returns nil when rows is empty.
func rowsErr(sheet string, rows []rowError) error {
	if len(rows) == 0 {
		return nil
	}
	return &sheetRowsError{Sheet: sheet, Rows: rows}
}

// parseCategories reads a Name | Type | Parent sheet. IDs follow row order,
// starting at 1. Parents are resolved by name after every row is read.
func parseCategories(values [][]any, businessID int64) ([]core.Category, []rowError, error) {
	if len(values) == 0 {
		return []core.Category{}, nil, nil
	}
	headers := toStrings(values[0])
	colName := indexOf(headers, "Name", "Category")
	colType := indexOf(headers, "Type")
	colParent := indexOf(headers, "Parent")
	if colName == -1 {
		return nil, nil, fmt.Errorf("unexpected categories header: missing Name; got headers=%v", headers)
	}

	out := []core.Category{}
	var skipped []rowError
	byName := map[string]int64{}
	parents := map[int]string{}
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		name := safeGet(row, colName)
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		c := core.Category{
			ID:         int64(len(out) + 1),
			BusinessID: businessID,
			Name:       name,
			Type:       core.CategoryType(strings.ToLower(safeGet(row, colType))),
		}
		if err := c.Validate(); err != nil {
			skipped = append(skipped, rowError{Row: i + 1, Err: err})
			continue
		}
		if _, dup := byName[strings.ToLower(name)]; dup {
			skipped = append(skipped, rowError{Row: i + 1, Err: fmt.Errorf("duplicate category %q", name)})
			continue
		}
		byName[strings.ToLower(name)] = c.ID
		if p := safeGet(row, colParent); p != "" {
			parents[len(out)] = p
		}
		out = append(out, c)
	}
	for idx, parent := range parents {
		if id, ok := byName[strings.ToLower(parent)]; ok && id != out[idx].ID {
			out[idx].ParentID = &id
		}
	}
	return out, skipped, nil
}

// parseTransactions reads a Date | Description | Amount | Direction | Category
// | Anomalous | Source sheet. Without a Direction column, a leading minus
// marks an outflow. Category names missing from categories get a negative id
// so that they resolve to the unknown label. IDs are sheet row numbers.
func parseTransactions(values [][]any, businessID int64, categories []core.Category) ([]core.Transaction, []rowError, error) {
	if len(values) == 0 {
		return []core.Transaction{}, nil, nil
	}
	headers := toStrings(values[0])
	colDate := indexOf(headers, "Date")
	colDesc := indexOf(headers, "Description")
	colAmount := indexOf(headers, "Amount")
	colDir := indexOf(headers, "Direction", "Type")
	colCat := indexOf(headers, "Category")
	colAnomalous := indexOf(headers, "Anomalous", "Anomaly")
	colSource := indexOf(headers, "Source")
	if colDate == -1 || colAmount == -1 {
		var missing []string
		if colDate == -1 {
			missing = append(missing, "Date")
		}
		if colAmount == -1 {
			missing = append(missing, "Amount")
		}
		return nil, nil, fmt.Errorf("unexpected transactions header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	byName := make(map[string]int64, len(categories))
	for _, c := range categories {
		byName[strings.ToLower(c.Name)] = c.ID
	}

	out := []core.Transaction{}
	var skipped []rowError
	for i := 1; i < len(values); i++ {
		rowNum := i + 1
		row := toStrings(values[i])
		if isBlank(row) {
			continue
		}

		date, err := core.ParseDate(safeGet(row, colDate))
		if err != nil {
			skipped = append(skipped, rowError{Row: rowNum, Err: err})
			continue
		}
		amount, dir, err := parseSignedAmount(safeGet(row, colAmount), safeGet(row, colDir))
		if err != nil {
			skipped = append(skipped, rowError{Row: rowNum, Err: err})
			continue
		}

		t := core.Transaction{
			ID:          int64(rowNum),
			BusinessID:  businessID,
			Date:        date,
			Description: safeGet(row, colDesc),
			Amount:      amount,
			Direction:   dir,
			Source:      "sheets",
			IsAnomalous: parseBool(safeGet(row, colAnomalous)),
		}
		if s := safeGet(row, colSource); s != "" {
			t.Source = s
		}
		if name := safeGet(row, colCat); name != "" {
			id, ok := byName[strings.ToLower(name)]
			if !ok {
				id = -int64(rowNum)
			}
			t.CategoryID = &id
		}
		if err := t.Validate(); err != nil {
			skipped = append(skipped, rowError{Row: rowNum, Err: err})
			continue
		}
		out = append(out, t)
	}
	return out, skipped, nil
}

func parseSignedAmount(raw, direction string) (decimal.Decimal, core.Direction, error) {
	raw = strings.TrimSpace(raw)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "-"), "+")
	raw = strings.ReplaceAll(raw, " ", "")

	amount, err := core.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, "", err
	}

	direction = strings.ToLower(strings.TrimSpace(direction))
	if negative && direction != "" {
		return decimal.Zero, "", fmt.Errorf("%w: signed amount with a direction", core.ErrInvalidAmount)
	}
	switch direction {
	case "":
		if negative {
			return amount, core.Outflow, nil
		}
		return amount, core.Inflow, nil
	case "inflow", "in", "income":
		return amount, core.Inflow, nil
	case "outflow", "out", "expense":
		return amount, core.Outflow, nil
	default:
		return decimal.Zero, "", fmt.Errorf("%w: %q", core.ErrInvalidDirection, direction)
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "yes", "y":
		return true
	}
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(headers []string, names ...string) int {
	for i, h := range headers {
		for _, n := range names {
			if strings.EqualFold(strings.TrimSpace(h), n) {
				return i
			}
		}
	}
	return -1
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func isBlank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}
