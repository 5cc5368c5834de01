package supabase

import (
	"context"
	"net/http"
	"net/url"

	"service-order-attachments/internal/model"
)

// Table reads and appends attachment rows through PostgREST.
type Table struct {
	client *Client
	name   string
}

func (c *Client) Table(name string) *Table {
	return &Table{client: c, name: name}
}

func (t *Table) Insert(ctx context.Context, attachment *model.Attachment) error {
	row := model.Attachment{
		ServiceOrder: attachment.ServiceOrder,
		CreatedAt:    attachment.CreatedAt,
		Workcenter:   attachment.Workcenter,
		Location:     attachment.Location,
	}
	return t.client.doJSON(ctx, http.MethodPost, t.path(), row, map[string]string{
		"Prefer": "return=minimal",
	}, nil)
}

// ListLocations returns gambar_url of every row for serviceOrder in the order
// the service returns them.
func (t *Table) ListLocations(ctx context.Context, serviceOrder string) ([]string, error) {
	query := url.Values{}
	query.Set("select", "gambar_url")
	query.Set("service_order", "eq."+serviceOrder)

	var rows []struct {
		Location string `json:"gambar_url"`
	}
	if err := t.client.do(ctx, request{
		method: http.MethodGet,
		path:   t.path(),
		query:  query,
	}, &rows); err != nil {
		return nil, err
	}

	locations := make([]string, 0, len(rows))
	for _, row := range rows {
		locations = append(locations, row.Location)
	}
	return locations, nil
}

func (t *Table) path() string {
	return "/rest/v1/" + url.PathEscape(t.name)
}
