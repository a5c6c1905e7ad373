package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	graphqlgo "github.com/graph-gophers/graphql-go"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/expense-tracker/graphql-api/internal/metrics"
)

const maxQueryDepth = 10

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// NewSchema parses the SDL against r. It fails when a resolver method is
// missing or mistyped.
func NewSchema(r *Resolver) (*graphqlgo.Schema, error) {
	return graphqlgo.ParseSchema(schemaSDL, r,
		graphqlgo.MaxDepth(maxQueryDepth),
		graphqlgo.Logger(panicLogger{log: r.log}),
	)
}

// panicLogger reports resolver panics through zerolog.
type panicLogger struct {
	log zerolog.Logger
}

func (l panicLogger) LogPanic(ctx context.Context, value interface{}) {
	l.log.Error().
		Str("panic", fmt.Sprint(value)).
		Str("request_id", requestIDFrom(ctx)).
		Msg("graphql resolver panicked")
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler serves GraphQL over POST (JSON body) and GET (query string).
type Handler struct {
	schema *graphqlgo.Schema
}

func NewHandler(schema *graphqlgo.Schema) *Handler {
	return &Handler{schema: schema}
}

func (h *Handler) Serve(c echo.Context) error {
	req, err := decodeRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	opType, err := operationType(req.Query, req.OperationName)
	// GET only serves queries: SameSite=Lax still attaches the session cookie
	// on cross-site navigation.
	if c.Request().Method == http.MethodGet {
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if opType != ast.Query {
			return echo.NewHTTPError(http.StatusBadRequest, "only queries may be sent with GET")
		}
	}
	start := time.Now()

	ctx := context.WithValue(c.Request().Context(), requestIDKey{}, c.Response().Header().Get(echo.HeaderXRequestID))
	resp := h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)

	metrics.GraphQLRequestDuration.WithLabelValues(operationLabel(opType)).Observe(time.Since(start).Seconds())
	return c.JSON(http.StatusOK, resp)
}

func decodeRequest(c echo.Context) (graphQLRequest, error) {
	var req graphQLRequest
	if c.Request().Method == http.MethodGet {
		req.Query = c.QueryParam("query")
		req.OperationName = c.QueryParam("operationName")
		if raw := c.QueryParam("variables"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Variables); err != nil {
				return req, fmt.Errorf("variables must be a JSON object")
			}
		}
		return req, nil
	}

	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid JSON body")
	}
	return req, nil
}

// operationType returns the type of the operation that operationName selects
// in query. It fails when the document does not parse or the selection is
// ambiguous; execution reports those cases to POST callers.
func operationType(query, operationName string) (ast.Operation, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "", fmt.Errorf("invalid query: %s", err.Error())
	}

	var op *ast.OperationDefinition
	switch {
	case operationName != "":
		op = doc.Operations.ForName(operationName)
	case len(doc.Operations) == 1:
		op = doc.Operations[0]
	}
	if op == nil {
		return "", fmt.Errorf("operation not found")
	}
	return op.Operation, nil
}

// operationLabel bounds the metric label to the GraphQL operation types.
func operationLabel(t ast.Operation) string {
	switch t {
	case ast.Query, ast.Mutation, ast.Subscription:
		return string(t)
	default:
		return "unknown"
	}
}
