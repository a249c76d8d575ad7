package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/ticket-marketplace/internal/model"
)

// SearchVisible returns one page of publicly visible tickets matching f plus
// the total number of matches. Location filters are case-insensitive
// substring matches.
func (r *TicketRepo) SearchVisible(ctx context.Context, f model.TicketFilter) (model.TicketPage, error) {
	where := []string{publicCond}
	args := []any{}

	if f.From != "" {
		where = append(where, "LOWER(from_location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.From)+"%")
	}
	if f.To != "" {
		where = append(where, "LOWER(to_location) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.To)+"%")
	}
	if f.Transport != "" {
		where = append(where, "transport = ?")
		args = append(args, strings.ToLower(f.Transport))
	}
	cond := strings.Join(where, " AND ")

	page := model.TicketPage{Items: []model.Ticket{}, Page: f.Page, PageSize: f.PageSize}
	if err := r.db.GetContext(ctx, &page.Total, `SELECT COUNT(*) FROM tickets WHERE `+cond, args...); err != nil {
		return page, err
	}

	order := "created_at DESC, id DESC"
	switch strings.ToLower(f.SortPrice) {
	case "asc":
		order = "price_cents ASC, id ASC"
	case "desc":
		order = "price_cents DESC, id DESC"
	}

	dataSQL := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + cond +
		` ORDER BY ` + order + ` LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), f.PageSize, (f.Page-1)*f.PageSize)

	if err := r.db.SelectContext(ctx, &page.Items, dataSQL, argsData...); err != nil {
		return page, err
	}
	return page, nil
}
