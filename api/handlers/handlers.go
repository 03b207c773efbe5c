// Package handlers binds the engine's logical operations to REST. Handlers
// only validate, marshal and dispatch; all semantics live in the engine.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonerr "github.com/quantfabric/swapflow/common/errors"
	"github.com/quantfabric/swapflow/internal/engine"
	"github.com/quantfabric/swapflow/internal/model"
	"github.com/quantfabric/swapflow/internal/store"
)

// Server hosts the REST binding.
type Server struct {
	engine   *engine.Engine
	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer wires the REST handlers.
func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	return &Server{engine: eng, validate: validator.New(), logger: logger}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST("/v1/calculations", s.calculate)
	r.POST("/v1/calculations/batch", s.calculateBatch)
	r.GET("/v1/contracts/:id/cashflows", s.getCashFlows)
	r.GET("/v1/settlements/pending", s.getPendingSettlements)
	r.GET("/v1/calculations/:id", s.getCachedResult)
	r.GET("/v1/calculations/:id/status", s.getStatus)
	r.POST("/v1/calculations/:id/reproduce", s.reproduce)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

// calculationRequest is the wire form of a calculation request.
type calculationRequest struct {
	Contracts   []model.Contract           `json:"contracts" validate:"required,min=1,dive"`
	Lots        map[string][]model.Lot     `json:"lots"`
	Start       string                     `json:"start" validate:"required,datetime=2006-01-02"`
	End         string                     `json:"end" validate:"required,datetime=2006-01-02"`
	Type        model.CalculationType      `json:"type,omitempty"`
	Strategy    model.MarketDataStrategy   `json:"strategy,omitempty"`
	Embedded    *model.MarketDataSnapshot  `json:"embedded_market_data,omitempty"`
	DataVersion string                     `json:"data_version,omitempty"`
}

func (s *Server) bind(c *gin.Context, body *calculationRequest) (model.CalculationRequest, bool) {
	if err := c.ShouldBindJSON(body); err != nil {
		s.fail(c, commonerr.Wrap(commonerr.KindValidation, err, "malformed request body"))
		return model.CalculationRequest{}, false
	}
	if err := s.validate.Struct(body); err != nil {
		s.fail(c, commonerr.Wrap(commonerr.KindValidation, err, "request validation failed"))
		return model.CalculationRequest{}, false
	}
	start, _ := time.Parse("2006-01-02", body.Start)
	end, _ := time.Parse("2006-01-02", body.End)
	return model.CalculationRequest{
		Contracts:   body.Contracts,
		Lots:        body.Lots,
		Range:       model.DateRange{Start: start, End: end},
		Type:        body.Type,
		Strategy:    body.Strategy,
		Embedded:    body.Embedded,
		DataVersion: body.DataVersion,
	}, true
}

func (s *Server) calculate(c *gin.Context) {
	var body calculationRequest
	req, ok := s.bind(c, &body)
	if !ok {
		return
	}
	result, err := s.engine.Calculate(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) calculateBatch(c *gin.Context) {
	var bodies []calculationRequest
	if err := c.ShouldBindJSON(&bodies); err != nil {
		s.fail(c, commonerr.Wrap(commonerr.KindValidation, err, "malformed batch body"))
		return
	}
	reqs := make([]model.CalculationRequest, 0, len(bodies))
	for i := range bodies {
		if err := s.validate.Struct(&bodies[i]); err != nil {
			s.fail(c, commonerr.Wrap(commonerr.KindValidation, err, "batch item %d invalid", i))
			return
		}
		start, _ := time.Parse("2006-01-02", bodies[i].Start)
		end, _ := time.Parse("2006-01-02", bodies[i].End)
		reqs = append(reqs, model.CalculationRequest{
			Contracts:   bodies[i].Contracts,
			Lots:        bodies[i].Lots,
			Range:       model.DateRange{Start: start, End: end},
			Type:        bodies[i].Type,
			Strategy:    bodies[i].Strategy,
			Embedded:    bodies[i].Embedded,
			DataVersion: bodies[i].DataVersion,
		})
	}
	c.JSON(http.StatusOK, s.engine.CalculateBatch(c.Request.Context(), reqs))
}

func (s *Server) getCashFlows(c *gin.Context) {
	r, err := parseRange(c.Query("start"), c.Query("end"))
	if err != nil {
		s.fail(c, err)
		return
	}
	filter := store.CashFlowFilter{
		Type:  model.CashFlowType(c.Query("type")),
		Stage: model.Stage(c.Query("stage")),
		LotID: c.Query("lot_id"),
	}
	flows, err := s.engine.GetCashFlows(c.Request.Context(), c.Param("id"), r, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, flows)
}

func (s *Server) getPendingSettlements(c *gin.Context) {
	filter := store.InstructionFilter{
		ContractID: c.Query("contract_id"),
		Currency:   c.Query("currency"),
	}
	if due := c.Query("due_by"); due != "" {
		t, err := time.Parse("2006-01-02", due)
		if err != nil {
			s.fail(c, commonerr.E(commonerr.KindValidation, "due_by must be YYYY-MM-DD"))
			return
		}
		filter.DueBy = t
	}
	ins, err := s.engine.GetPendingSettlements(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ins)
}

func (s *Server) getCachedResult(c *gin.Context) {
	result, err := s.engine.GetCachedResult(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) getStatus(c *gin.Context) {
	rec, err := s.engine.RequestStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) reproduce(c *gin.Context) {
	result, err := s.engine.ReproduceCalculation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// fail renders an error with its stable kind; identifiers ride along so the
// caller never has to mine a stack trace.
func (s *Server) fail(c *gin.Context, err error) {
	status := commonerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error": err.Error(),
		"kind":  string(commonerr.KindOf(err)),
	})
}

func parseRange(start, end string) (model.DateRange, error) {
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return model.DateRange{}, commonerr.E(commonerr.KindValidation, "start must be YYYY-MM-DD")
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return model.DateRange{}, commonerr.E(commonerr.KindValidation, "end must be YYYY-MM-DD")
	}
	return model.DateRange{Start: s, End: e}, nil
}
