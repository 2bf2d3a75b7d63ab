package ui

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"attrition/adapters/excel"
	"attrition/app"
	"attrition/domain/core"
	"attrition/domain/employee"
	"attrition/domain/insight"
	"attrition/internal/auth"
	"attrition/internal/errors"
	"attrition/internal/session"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("username and password are required"))
		return
	}

	token, expires, err := s.auth.Login(req.Username, req.Password)
	if err != nil {
		if stderrors.Is(err, auth.ErrInvalidCredentials) {
			s.respondError(c, errors.Unauthorized(err.Error()))
			return
		}
		s.respondError(c, err)
		return
	}

	s.logger.Info().Str("username", req.Username).Msg("analyst logged in")
	c.JSON(http.StatusOK, gin.H{"token": token, "expires_at": expires})
}

func (s *Server) handleUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, excel.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			s.respondError(c, errors.PayloadTooLarge(fmt.Sprintf("upload exceeds %d bytes", excel.MaxUploadBytes)))
			return
		}
		s.respondError(c, errors.InvalidInput(`multipart field "file" is required`))
		return
	}

	fileType, err := excel.FileType(header.Filename)
	if err != nil {
		s.respondError(c, errors.InvalidInput(err.Error()))
		return
	}

	f, err := header.Open()
	if err != nil {
		s.respondError(c, errors.Wrap(err, "open upload"))
		return
	}
	defer f.Close()

	data, err := s.reader.Read(f, fileType)
	if err != nil {
		s.respondError(c, errors.InvalidInput(err.Error()))
		return
	}

	b, err := s.batches.Ingest(c.Request.Context(), app.Dataset{
		SourceName: header.Filename,
		Headers:    data.Headers,
		Rows:       data.Rows,
	})
	if err != nil {
		if core.IsScoringError(err) {
			s.respondError(c, errors.SchemaMismatch(err))
			return
		}
		s.respondError(c, errors.Wrap(err, "scoring failed"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"batch":   b.Meta,
		"columns": excel.Header(b.Columns),
		"summary": app.Summarize(b.Records),
	})
}

func (s *Server) handleListDatasets(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	metas, err := s.batches.Batches(c.Request.Context(), limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": metas})
}

func (s *Server) handleDeleteDataset(c *gin.Context) {
	id, err := core.ParseBatchID(c.Param("id"))
	if err != nil {
		s.respondError(c, errors.InvalidInput(err.Error()))
		return
	}
	if err := s.batches.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// batch resolves the :id parameter, responding with an error when it cannot
func (s *Server) batch(c *gin.Context) (*session.Batch, bool) {
	id, err := core.ParseBatchID(c.Param("id"))
	if err != nil {
		s.respondError(c, errors.InvalidInput(err.Error()))
		return nil, false
	}
	b, err := s.batches.Batch(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return b, true
}

// employee resolves :eid within the batch
func (s *Server) employee(c *gin.Context, b *session.Batch) (employee.ScoredRecord, bool) {
	eid := c.Param("eid")
	rec, ok := employee.FindByID(b.Records, eid)
	if !ok {
		s.respondError(c, errors.NotFound("employee "+eid))
		return employee.ScoredRecord{}, false
	}
	return rec, true
}

func (s *Server) handleGetDataset(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"batch":   b.Meta,
		"columns": excel.Header(b.Columns),
		"records": b.Records,
	})
}

func (s *Server) handleSchema(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"attributes":     b.Registry.Attributes(),
		"risk_threshold": employee.RiskThreshold,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, app.Summarize(b.Records))
}

func (s *Server) handleEmployee(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}
	rec, ok := s.employee(c, b)
	if !ok {
		return
	}
	history, err := s.batches.Insights(c.Request.Context(), b.Meta.ID, rec.EmployeeID())
	if err != nil {
		s.logger.Warn().Err(err).Msg("insight history unavailable")
	}
	c.JSON(http.StatusOK, gin.H{"employee": rec, "insights": history})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, errors.InvalidInput("body must be {\"query\": \"...\"}"))
		return
	}
	b, ok := s.batch(c)
	if !ok {
		return
	}

	result := s.queries.Run(c.Request.Context(), req.Query, b.Records, b.Registry)
	c.JSON(http.StatusOK, result)
}

// insightResponse is one generated insight as returned by the API
type insightResponse struct {
	ID         core.InsightID `json:"id,omitempty"`
	EmployeeID string         `json:"employee_id"`
	Insight    insight.Record `json:"insight"`
	Degraded   bool           `json:"degraded"`
	Reason     string         `json:"reason,omitempty"`
	HTML       string         `json:"html,omitempty"`
}

// insightResponse builds the response for out. With save set the insight is
// added to the employee's history and ID is filled in; it stays empty when
// nothing was stored.
func (s *Server) insightResponse(c *gin.Context, batchID core.BatchID, out app.InsightOutcome, html, save bool) insightResponse {
	resp := insightResponse{
		EmployeeID: out.EmployeeID,
		Insight:    out.Insight,
		Degraded:   out.Degraded,
		Reason:     out.ReasonText(),
	}
	if html {
		resp.HTML = insight.RenderHTML(out.Insight)
	}
	if !save {
		return resp
	}
	stored, err := s.batches.SaveInsight(c.Request.Context(), batchID, out)
	if err != nil {
		s.logger.Warn().Err(err).Str("employee_id", out.EmployeeID).Msg("insight not saved")
		return resp
	}
	if stored != nil {
		resp.ID = stored.ID
	}
	return resp
}

func (s *Server) handleInsight(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}
	rec, ok := s.employee(c, b)
	if !ok {
		return
	}

	out := s.insights.Generate(c.Request.Context(), rec)
	c.JSON(http.StatusOK, s.insightResponse(c, b.Meta.ID, out, c.Query("format") == "html", saveRequested(c)))
}

// defaultAtRiskLimit caps a batch insight request when no limit is given
const defaultAtRiskLimit = 20

func (s *Server) handleAtRiskInsights(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultAtRiskLimit)))
	if err != nil || limit <= 0 {
		s.respondError(c, errors.ValidationError("limit must be a positive integer"))
		return
	}

	targets := employee.HighRisk(b.Records)
	if len(targets) > limit {
		targets = targets[:limit]
	}

	outcomes, err := s.insights.GenerateBatch(c.Request.Context(), targets)
	if err != nil {
		s.respondError(c, errors.Wrap(err, "insight generation cancelled"))
		return
	}

	html, save := c.Query("format") == "html", saveRequested(c)
	resp := make([]insightResponse, 0, len(outcomes))
	degraded := 0
	for _, out := range outcomes {
		if out.Degraded {
			degraded++
		}
		resp = append(resp, s.insightResponse(c, b.Meta.ID, out, html, save))
	}
	c.JSON(http.StatusOK, gin.H{"insights": resp, "degraded": degraded})
}

func (s *Server) handleExport(c *gin.Context) {
	b, ok := s.batch(c)
	if !ok {
		return
	}

	records := b.Records
	switch scope := c.DefaultQuery("scope", "all"); scope {
	case "all":
	case "high_risk":
		records = employee.HighRisk(records)
	default:
		s.respondError(c, errors.ValidationError(fmt.Sprintf("unknown scope %q", scope)))
		return
	}

	name := strings.TrimSuffix(b.Meta.SourceName, "."+extension(b.Meta.SourceName))
	if name == "" {
		name = "employees"
	}

	switch format := c.DefaultQuery("format", excel.TypeCSV); format {
	case excel.TypeCSV:
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_scored.csv"`, name))
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Status(http.StatusOK)
		if err := excel.WriteCSV(c.Writer, b.Columns, records); err != nil {
			s.logger.Error().Err(err).Msg("csv export failed")
		}
	case excel.TypeXLSX:
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_scored.xlsx"`, name))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Status(http.StatusOK)
		if err := excel.WriteXLSX(c.Writer, b.Columns, records); err != nil {
			s.logger.Error().Err(err).Msg("xlsx export failed")
		}
	default:
		s.respondError(c, errors.ValidationError(fmt.Sprintf("unknown format %q", format)))
	}
}

// saveRequested reports whether the caller asked for generated insights to be stored
func saveRequested(c *gin.Context) bool {
	save, _ := strconv.ParseBool(c.Query("save"))
	return save
}

func extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return ""
}
