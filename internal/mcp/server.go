// Package mcp exposes the record store's operations as MCP tools over
// stdio.
//
// The adapter is the error boundary: domain failures never propagate as
// protocol errors. Every tool result carries ok, and failed operations are
// shaped as {ok:false, error:<kind>, message:<text>} using the stable
// error kinds from the record package, so clients can branch on the kind
// without parsing free text.
package mcp

import (
	"context"
	"strconv"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/adrlog/adrlog/internal/record"
	"github.com/adrlog/adrlog/internal/search"
	"github.com/adrlog/adrlog/internal/store"
)

// Server wraps the MCP server with the record store.
type Server struct {
	store  *store.Store
	server *mcp.Server
}

// NewServer creates an MCP server exposing the store's operations.
func NewServer(st *store.Store, version string) *Server {
	s := &Server{store: st}

	impl := &mcp.Implementation{
		Name:    "adrlog",
		Version: version,
	}

	s.server = mcp.NewServer(impl, nil)
	s.registerTools()

	return s
}

// Run serves MCP on stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_create",
		Description: "Create a new decision record. Assigns the next sequence number, " +
			"sets status PROPOSED and writes the record's markdown document. " +
			"The id is permanent and must be a lowercase slug (letters, digits, underscores).",
	}, s.handleCreate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "adr_get",
		Description: "Get the full structured content of one decision record by id.",
	}, s.handleGet)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_search",
		Description: "Search decision-record titles for a keyword (case-insensitive " +
			"substring). Returns a title-to-id mapping, newest records first.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_detail_search",
		Description: "Full-text search across all decision-record documents. Returns " +
			"matching records ranked by occurrence count with an excerpt around the " +
			"first match.",
	}, s.handleDetailSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_update_status",
		Description: "Change a record's status to PROPOSED, ACCEPTED, REJECTED, " +
			"FINISHED or FAILED. SUPERSEDED cannot be set here; use adr_supersede. " +
			"Superseded records are terminal and reject all changes.",
	}, s.handleUpdateStatus)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_supersede",
		Description: "Mark a record as superseded by another record, referenced by id " +
			"or sequence number. This is terminal: the record becomes immutable.",
	}, s.handleSupersede)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_update",
		Description: "Patch content fields of a record (title, context, decision, " +
			"rationale, assumptions, risks, cost, consequences, expected_result). " +
			"Unknown fields reject the whole patch; superseded records are immutable.",
	}, s.handleUpdate)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "adr_list",
		Description: "List decision records filtered by status and inclusive date " +
			"range, newest first, paginated.",
	}, s.handleList)
}

// failure is the uniform error shape of every tool.
type failure struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// fail shapes a domain error into a tool result instead of a protocol
// error.
func fail(err error) (*mcp.CallToolResult, any, error) {
	return nil, failure{
		OK:      false,
		Error:   string(record.KindOf(err)),
		Message: err.Error(),
	}, nil
}

// RiskArg is the wire form of one named risk.
type RiskArg struct {
	Impact      string `json:"impact" jsonschema:"What happens if the risk materializes"`
	Probability string `json:"probability" jsonschema:"Likelihood: LOW, MED or HIGH"`
	Mitigation  string `json:"mitigation" jsonschema:"How the risk is mitigated"`
}

// CostArg is the wire form of the cost field.
type CostArg struct {
	OneOff  []string `json:"one_off,omitempty" jsonschema:"One-time cost items"`
	Ongoing []string `json:"ongoing,omitempty" jsonschema:"Recurring cost items"`
}

// ConsequencesArg is the wire form of the consequences field.
type ConsequencesArg struct {
	Positive []string `json:"positive,omitempty" jsonschema:"Expected positive consequences"`
	Negative []string `json:"negative,omitempty" jsonschema:"Expected negative consequences"`
}

// CreateArgs defines the input for adr_create.
type CreateArgs struct {
	Title          string             `json:"title" jsonschema:"Short imperative title of the decision"`
	ID             string             `json:"id" jsonschema:"Permanent slug id: lowercase letters, digits, underscores, 3-65 chars, starts with a letter"`
	Context        string             `json:"context,omitempty" jsonschema:"Forces at play and background leading to the decision"`
	Decision       string             `json:"decision,omitempty" jsonschema:"The decision itself"`
	Rationale      string             `json:"rationale,omitempty" jsonschema:"Why this decision over the alternatives"`
	Assumptions    []string           `json:"assumptions,omitempty" jsonschema:"Assumptions the decision rests on"`
	Risks          map[string]RiskArg `json:"risks,omitempty" jsonschema:"Named risks with impact, probability and mitigation"`
	Cost           CostArg            `json:"cost,omitempty" jsonschema:"One-off and ongoing cost items"`
	Consequences   ConsequencesArg    `json:"consequences,omitempty" jsonschema:"Positive and negative consequences"`
	ExpectedResult []string           `json:"expected_result,omitempty" jsonschema:"Acceptance criteria for the decision"`
}

// CreateResult is the output of adr_create.
type CreateResult struct {
	OK       bool   `json:"ok"`
	ID       string `json:"id"`
	Sequence int    `json:"sequence_number"`
	Status   string `json:"status"`
	Date     string `json:"date"`
}

func (s *Server) handleCreate(ctx context.Context, req *mcp.CallToolRequest, args CreateArgs) (*mcp.CallToolResult, any, error) {
	risks, err := convertRisks(args.Risks)
	if err != nil {
		return fail(err)
	}

	rec, err := s.store.Create(store.CreateParams{
		ID:             args.ID,
		Title:          args.Title,
		Context:        args.Context,
		Decision:       args.Decision,
		Rationale:      args.Rationale,
		Assumptions:    args.Assumptions,
		ExpectedResult: args.ExpectedResult,
		Risks:          risks,
		Cost:           record.Cost{OneOff: args.Cost.OneOff, Ongoing: args.Cost.Ongoing},
		Consequences: record.Consequences{
			Positive: args.Consequences.Positive,
			Negative: args.Consequences.Negative,
		},
	})
	if err != nil {
		return fail(err)
	}

	return nil, CreateResult{
		OK:       true,
		ID:       rec.ID,
		Sequence: rec.Sequence,
		Status:   string(rec.Status),
		Date:     rec.Date,
	}, nil
}

func convertRisks(args map[string]RiskArg) (map[string]record.Risk, error) {
	if len(args) == 0 {
		return nil, nil
	}

	risks := make(map[string]record.Risk, len(args))

	for name, arg := range args {
		probability, err := record.ParseProbability(arg.Probability)
		if err != nil {
			return nil, err
		}

		risks[name] = record.Risk{
			Impact:      arg.Impact,
			Probability: probability,
			Mitigation:  arg.Mitigation,
		}
	}

	return risks, nil
}

// GetArgs defines the input for adr_get.
type GetArgs struct {
	ID string `json:"id" jsonschema:"The record id to fetch"`
}

// RecordPayload is the full wire form of a record.
type RecordPayload struct {
	ID             string             `json:"id"`
	Sequence       int                `json:"sequence_number"`
	Title          string             `json:"title"`
	Context        string             `json:"context"`
	Decision       string             `json:"decision"`
	Rationale      string             `json:"rationale"`
	Assumptions    []string           `json:"assumptions,omitempty"`
	Risks          map[string]RiskArg `json:"risks,omitempty"`
	Cost           CostArg            `json:"cost"`
	Consequences   ConsequencesArg    `json:"consequences"`
	ExpectedResult []string           `json:"expected_result,omitempty"`
	Status         string             `json:"status"`
	SupersededBy   string             `json:"superseded_by,omitempty"`
	Date           string             `json:"date"`
}

// GetResult is the output of adr_get.
type GetResult struct {
	OK     bool          `json:"ok"`
	Record RecordPayload `json:"record"`
}

func (s *Server) handleGet(ctx context.Context, req *mcp.CallToolRequest, args GetArgs) (*mcp.CallToolResult, any, error) {
	rec, err := s.store.Get(args.ID)
	if err != nil {
		return fail(err)
	}

	return nil, GetResult{OK: true, Record: recordPayload(rec)}, nil
}

func recordPayload(rec record.Record) RecordPayload {
	payload := RecordPayload{
		ID:             rec.ID,
		Sequence:       rec.Sequence,
		Title:          rec.Title,
		Context:        rec.Context,
		Decision:       rec.Decision,
		Rationale:      rec.Rationale,
		Assumptions:    rec.Assumptions,
		Cost:           CostArg{OneOff: rec.Cost.OneOff, Ongoing: rec.Cost.Ongoing},
		Consequences:   ConsequencesArg{Positive: rec.Consequences.Positive, Negative: rec.Consequences.Negative},
		ExpectedResult: rec.ExpectedResult,
		Status:         string(rec.Status),
		Date:           rec.Date,
	}

	if len(rec.Risks) > 0 {
		payload.Risks = make(map[string]RiskArg, len(rec.Risks))
		for name, risk := range rec.Risks {
			payload.Risks[name] = RiskArg{
				Impact:      risk.Impact,
				Probability: string(risk.Probability),
				Mitigation:  risk.Mitigation,
			}
		}
	}

	if rec.SupersededBy != 0 {
		payload.SupersededBy = strconv.Itoa(rec.SupersededBy)
	}

	return payload
}

// SearchArgs defines the input for adr_search.
type SearchArgs struct {
	Keyword string `json:"keyword" jsonschema:"Substring to match against titles, case-insensitive"`
}

// SearchResult is the output of adr_search.
type SearchResult struct {
	OK     bool              `json:"ok"`
	Titles map[string]string `json:"titles"`
}

func (s *Server) handleSearch(ctx context.Context, req *mcp.CallToolRequest, args SearchArgs) (*mcp.CallToolResult, any, error) {
	matches, err := search.Titles(s.store, args.Keyword)
	if err != nil {
		return fail(err)
	}

	titles := make(map[string]string, len(matches))
	for _, m := range matches {
		titles[m.Title] = m.ID
	}

	return nil, SearchResult{OK: true, Titles: titles}, nil
}

// DetailSearchArgs defines the input for adr_detail_search.
type DetailSearchArgs struct {
	Keyword string `json:"keyword" jsonschema:"Substring to search for in document text, case-insensitive"`
}

// DetailSearchResult is the output of adr_detail_search.
type DetailSearchResult struct {
	OK      bool                 `json:"ok"`
	Results []search.DetailMatch `json:"results"`
}

func (s *Server) handleDetailSearch(ctx context.Context, req *mcp.CallToolRequest, args DetailSearchArgs) (*mcp.CallToolResult, any, error) {
	matches, err := search.Details(s.store, args.Keyword)
	if err != nil {
		return fail(err)
	}

	return nil, DetailSearchResult{OK: true, Results: matches}, nil
}

// UpdateStatusArgs defines the input for adr_update_status.
type UpdateStatusArgs struct {
	ID     string `json:"id" jsonschema:"The record id to transition"`
	Status string `json:"status" jsonschema:"Target status: PROPOSED, ACCEPTED, REJECTED, FINISHED or FAILED"`
}

// StatusResult is the output of adr_update_status.
type StatusResult struct {
	OK     bool   `json:"ok"`
	ID     string `json:"id"`
	Status string `json:"status"`
	Date   string `json:"date"`
}

func (s *Server) handleUpdateStatus(ctx context.Context, req *mcp.CallToolRequest, args UpdateStatusArgs) (*mcp.CallToolResult, any, error) {
	status, err := record.ParseStatus(args.Status)
	if err != nil {
		return fail(err)
	}

	meta, err := s.store.UpdateStatus(args.ID, status)
	if err != nil {
		return fail(err)
	}

	return nil, StatusResult{
		OK:     true,
		ID:     meta.ID,
		Status: string(meta.Status),
		Date:   meta.Date,
	}, nil
}

// SupersedeArgs defines the input for adr_supersede.
type SupersedeArgs struct {
	ID           string `json:"id" jsonschema:"The record id being superseded"`
	SupersededBy string `json:"superseded_by" jsonschema:"The superseding record, referenced by id or sequence number"`
}

// SupersedeResult is the output of adr_supersede.
type SupersedeResult struct {
	OK           bool   `json:"ok"`
	ID           string `json:"id"`
	Status       string `json:"status"`
	SupersededBy string `json:"superseded_by"`
}

func (s *Server) handleSupersede(ctx context.Context, req *mcp.CallToolRequest, args SupersedeArgs) (*mcp.CallToolResult, any, error) {
	meta, err := s.store.Supersede(args.ID, args.SupersededBy)
	if err != nil {
		return fail(err)
	}

	return nil, SupersedeResult{
		OK:           true,
		ID:           meta.ID,
		Status:       string(meta.Status),
		SupersededBy: strconv.Itoa(meta.SupersededBy),
	}, nil
}

// UpdateArgs defines the input for adr_update.
type UpdateArgs struct {
	ID     string         `json:"id" jsonschema:"The record id to patch"`
	Fields map[string]any `json:"fields" jsonschema:"Partial record content keyed by field name; only title, context, decision, rationale, assumptions, risks, cost, consequences and expected_result are updatable"`
}

// UpdateResult is the output of adr_update.
type UpdateResult struct {
	OK            bool     `json:"ok"`
	ID            string   `json:"id"`
	UpdatedFields []string `json:"updated_fields"`
}

func (s *Server) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, args UpdateArgs) (*mcp.CallToolResult, any, error) {
	patch, err := store.PatchFromFields(args.Fields)
	if err != nil {
		return fail(err)
	}

	rec, err := s.store.Update(args.ID, patch)
	if err != nil {
		return fail(err)
	}

	return nil, UpdateResult{
		OK:            true,
		ID:            rec.ID,
		UpdatedFields: patch.Fields(),
	}, nil
}

// ListArgs defines the input for adr_list.
type ListArgs struct {
	Status   string `json:"status,omitempty" jsonschema:"Exact status filter (optional)"`
	From     string `json:"from,omitempty" jsonschema:"Inclusive lower date bound, YYYY-MM-DD (optional)"`
	To       string `json:"to,omitempty" jsonschema:"Inclusive upper date bound, YYYY-MM-DD (optional)"`
	Page     int    `json:"page,omitempty" jsonschema:"1-based page number, default 1"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"Items per page, default 20"`
}

// MetaPayload is the wire form of one index entry.
type MetaPayload struct {
	Title        string `json:"title"`
	ID           string `json:"id"`
	Sequence     int    `json:"sequence_number"`
	Status       string `json:"status"`
	Date         string `json:"date"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

// ListResult is the output of adr_list.
type ListResult struct {
	OK         bool             `json:"ok"`
	Items      []MetaPayload    `json:"items"`
	Pagination store.Pagination `json:"pagination"`
}

func (s *Server) handleList(ctx context.Context, req *mcp.CallToolRequest, args ListArgs) (*mcp.CallToolResult, any, error) {
	page, err := s.store.List(store.ListQuery{
		Status:   record.Status(args.Status),
		From:     args.From,
		To:       args.To,
		Page:     args.Page,
		PageSize: args.PageSize,
	})
	if err != nil {
		return fail(err)
	}

	items := make([]MetaPayload, 0, len(page.Items))

	for _, item := range page.Items {
		payload := MetaPayload{
			Title:    item.Title,
			ID:       item.ID,
			Sequence: item.Sequence,
			Status:   string(item.Status),
			Date:     item.Date,
		}

		if item.SupersededBy != 0 {
			payload.SupersededBy = strconv.Itoa(item.SupersededBy)
		}

		items = append(items, payload)
	}

	return nil, ListResult{OK: true, Items: items, Pagination: page.Pagination}, nil
}
