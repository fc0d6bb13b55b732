package sheetsinfra

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-event-registration/internal/config"
	"github.com/go-event-registration/internal/domain"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// valuesAPI is the slice of the Sheets API the client needs.
type valuesAPI interface {
	Probe(ctx context.Context) error
	Read(ctx context.Context, rng string) ([][]interface{}, error)
	Append(ctx context.Context, rng string, rows [][]interface{}) error
	BatchUpdate(ctx context.Context, data []*sheets.ValueRange) error
}

type googleValues struct {
	svc           *sheets.Service
	spreadsheetID string
}

func (g *googleValues) Probe(ctx context.Context) error {
	_, err := g.svc.Spreadsheets.Get(g.spreadsheetID).Fields("spreadsheetId,properties.title").Context(ctx).Do()
	return err
}

func (g *googleValues) Read(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleValues) Append(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (g *googleValues) BatchUpdate(ctx context.Context, data []*sheets.ValueRange) error {
	_, err := g.svc.Spreadsheets.Values.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             data,
	}).Context(ctx).Do()
	return err
}

// Client mirrors registrations and transactions into the spreadsheet. It is
// best-effort: every call may fail and none of them is authoritative.
type Client struct {
	api   valuesAPI
	ready bool
}

// New connects to the spreadsheet with service-account credentials and probes
// it. A failed probe yields a client that reports itself uninitialized.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.GoogleServiceAccountJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GoogleServiceAccountJSON)))
	case cfg.GoogleServiceAccountFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.GoogleServiceAccountFile))
	default:
		return nil, fmt.Errorf("google service account credentials missing: %w", domain.ErrNotInitialized)
	}
	opts = append(opts, option.WithScopes(sheets.SpreadsheetsScope))
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return newClient(ctx, &googleValues{svc: svc, spreadsheetID: cfg.GoogleSheetID}), nil
}

func newClient(ctx context.Context, api valuesAPI) *Client {
	c := &Client{api: api}
	if err := api.Probe(ctx); err != nil {
		slog.Warn("spreadsheet probe failed, remote sync disabled", "err", err)
		return c
	}
	c.ready = true
	if err := c.ensureHeaders(ctx); err != nil {
		slog.Warn("could not write spreadsheet headers", "err", err)
	}
	return c
}

// Ready reports whether the connectivity probe succeeded.
func (c *Client) Ready() bool { return c != nil && c.ready }

func (c *Client) check() error {
	if !c.Ready() {
		return fmt.Errorf("spreadsheet client: %w", domain.ErrNotInitialized)
	}
	return nil
}

// AppendRegistration appends one row to the Registrations sheet.
func (c *Client) AppendRegistration(ctx context.Context, r *domain.Registration) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.api.Append(ctx, registrationsRange, [][]interface{}{registrationRow(r)}); err != nil {
		return external("append registration", err)
	}
	return nil
}

// AppendTransaction appends one row to the Transactions sheet.
func (c *Client) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	if err := c.check(); err != nil {
		return err
	}
	if err := c.api.Append(ctx, transactionsRange, [][]interface{}{transactionRow(t)}); err != nil {
		return external("append transaction", err)
	}
	return nil
}

// UpdateTeamMembers overwrites the roster columns of every row carrying teamID.
// Zero matching rows is a no-op.
func (c *Client) UpdateTeamMembers(ctx context.Context, teamID string, roster domain.Roster) error {
	if err := c.check(); err != nil {
		return err
	}
	if teamID == domain.NoTeam {
		return nil
	}
	rows, err := c.GetRegistrationsByTeamID(ctx, teamID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, 0, len(rows))
	for _, row := range rows {
		data = append(data, &sheets.ValueRange{
			Range:  fmt.Sprintf(rosterRangeFmt, row.Number, row.Number),
			Values: [][]interface{}{rosterValues(roster)},
		})
	}
	if err := c.api.BatchUpdate(ctx, data); err != nil {
		return external("update team members", err)
	}
	return nil
}

// GetRegistrationsByTeamID reads the whole Registrations sheet and filters it
// locally. Cost is O(total rows) and the result may be stale by the next write.
func (c *Client) GetRegistrationsByTeamID(ctx context.Context, teamID string) ([]Row, error) {
	rows, err := c.readRegistrations(ctx)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, row := range rows {
		if teamID != domain.NoTeam && row.TeamID() == teamID {
			out = append(out, row)
		}
	}
	return out, nil
}

// CheckExistingTeam returns the team id of a row registered by email for exactly eventName.
func (c *Client) CheckExistingTeam(ctx context.Context, email, eventName string) (string, bool, error) {
	rows, err := c.readRegistrations(ctx)
	if err != nil {
		return "", false, err
	}
	for _, row := range rows {
		if row.TeamID() != "" && strings.EqualFold(row.Email(), email) && row.Events() == eventName {
			return row.TeamID(), true, nil
		}
	}
	return "", false, nil
}

// HasRegistration reports whether a row for registrationID already exists.
func (c *Client) HasRegistration(ctx context.Context, registrationID string) (bool, error) {
	rows, err := c.readRegistrations(ctx)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.RegistrationID() == registrationID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) readRegistrations(ctx context.Context) ([]Row, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	values, err := c.api.Read(ctx, registrationsRange)
	if err != nil {
		return nil, external("read registrations", err)
	}
	return toRows(values, RegistrationHeaders[0]), nil
}

func (c *Client) ensureHeaders(ctx context.Context) error {
	for rng, headers := range map[string][]string{
		registrationsRange: RegistrationHeaders,
		transactionsRange:  TransactionHeaders,
	} {
		values, err := c.api.Read(ctx, rng)
		if err != nil {
			return err
		}
		if len(values) > 0 {
			continue
		}
		if err := c.api.Append(ctx, rng, [][]interface{}{headerRow(headers)}); err != nil {
			return err
		}
	}
	return nil
}

func external(op string, err error) error {
	return fmt.Errorf("spreadsheet %s: %v: %w", op, err, domain.ErrExternalService)
}
