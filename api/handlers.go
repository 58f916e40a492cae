package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/log"
	"github.com/graphfuse/graphfuse/pkg/source"
)

// sampleText is the document behind the test-sample endpoint, small
// enough to ingest in seconds against any backend combination.
const sampleText = "The son of Duke Leto Atreides and the Lady Jessica, Paul is the heir of " +
	"House Atreides, an aristocratic family that rules the planet Caladan, the rainy " +
	"planet, since 10191. After the family moves to the desert planet Arrakis, Paul " +
	"becomes entangled with the Fremen and the spice melange, the most valuable " +
	"substance in the universe."

const eventInterval = 2 * time.Second

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Status(c.Request.Context()))
}

// connectorConfig carries per-request overrides for the remote
// connectors. Empty fields fall back to the configured values.
type connectorConfig struct {
	URL        string `json:"url"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	FolderPath string `json:"folder_path"`
	Path       string `json:"path"`
}

type ingestRequest struct {
	DataSource      string           `json:"data_source"`
	Paths           []string         `json:"paths"`
	ConnectorConfig *connectorConfig `json:"connector_config"`
}

func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	// An empty body means "use the configured source".
	_ = c.ShouldBindJSON(&req)

	jobID, err := s.startIngest(c.Request.Context(), req)
	if err != nil {
		abortWith(c, err)
		return
	}
	s.startedResponse(c, jobID)
}

// startIngest dispatches on the request's data_source, falling back to
// the configured source when the body names none.
func (s *Server) startIngest(ctx context.Context, req ingestRequest) (string, error) {
	switch req.DataSource {
	case "":
		if len(req.Paths) > 0 {
			return s.engine.IngestPaths(ctx, req.Paths)
		}
		return s.engine.Ingest(ctx)
	case "filesystem":
		paths := req.Paths
		if len(paths) == 0 {
			paths = s.cfg.SourcePaths
		}
		return s.engine.IngestPaths(ctx, paths)
	case "cmis":
		cfg := s.cfg.CMIS
		if cc := req.ConnectorConfig; cc != nil {
			overrideStr(&cfg.URL, cc.URL)
			overrideStr(&cfg.Username, cc.Username)
			overrideStr(&cfg.Password, cc.Password)
			overrideStr(&cfg.FolderPath, cc.FolderPath)
		}
		return s.engine.IngestSource(ctx, source.NewCMIS(cfg))
	case "alfresco":
		cfg := s.cfg.Alfresco
		if cc := req.ConnectorConfig; cc != nil {
			overrideStr(&cfg.URL, cc.URL)
			overrideStr(&cfg.Username, cc.Username)
			overrideStr(&cfg.Password, cc.Password)
			overrideStr(&cfg.Path, cc.Path)
		}
		return s.engine.IngestSource(ctx, source.NewAlfresco(cfg))
	}
	return "", fmt.Errorf("%w: unknown data_source %q", domain.ErrInvalidInput, req.DataSource)
}

func overrideStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

type ingestTextRequest struct {
	Text string `json:"text" binding:"required"`
	Name string `json:"name"`
}

func (s *Server) handleIngestText(c *gin.Context) {
	var req ingestTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := s.engine.IngestText(c.Request.Context(), req.Name, req.Text)
	if err != nil {
		abortWith(c, err)
		return
	}
	s.startedResponse(c, jobID)
}

// handleUpload spools multipart files to a temp directory and ingests
// them from there.
func (s *Server) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	dir, err := os.MkdirTemp("", "graphfuse-upload-")
	if err != nil {
		abortWith(c, err)
		return
	}

	paths := make([]string, 0, len(files))
	for _, fh := range files {
		dst := filepath.Join(dir, filepath.Base(fh.Filename))
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			abortWith(c, err)
			return
		}
		paths = append(paths, dst)
	}

	jobID, err := s.engine.IngestPaths(c.Request.Context(), paths)
	if err != nil {
		abortWith(c, err)
		return
	}
	s.startedResponse(c, jobID)
}

func (s *Server) handleTestSample(c *gin.Context) {
	jobID, err := s.engine.IngestText(c.Request.Context(), "sample.txt", sampleText)
	if err != nil {
		abortWith(c, err)
		return
	}
	s.startedResponse(c, jobID)
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k"`
}

func (s *Server) handleSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := s.engine.Search(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   req.Query,
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := s.engine.Query(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, answer)
}

func (s *Server) handleProcessingStatus(c *gin.Context) {
	job, err := s.engine.ProcessingStatus(c.Param("id"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleCancelProcessing(c *gin.Context) {
	id := c.Param("id")
	if err := s.engine.Cancel(id); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"processing_id": id,
		"status":        "cancelled",
	})
}

// handleProcessingEvents streams job snapshots over a websocket until
// the job reaches a terminal state.
func (s *Server) handleProcessingEvents(c *gin.Context) {
	id := c.Param("id")

	events, err := s.engine.Events(c.Request.Context(), id, eventInterval)
	if err != nil {
		abortWith(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	for job := range events {
		if err := conn.WriteJSON(job); err != nil {
			return
		}
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.engine.Reset(c.Request.Context()); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

func (s *Server) startedResponse(c *gin.Context, jobID string) {
	resp := gin.H{
		"processing_id": jobID,
		"status":        "started",
		"message":       "Processing started",
	}
	if job, err := s.engine.ProcessingStatus(jobID); err == nil && job.EstimatedRemain != "" {
		resp["estimated_time"] = job.EstimatedRemain
	}
	c.JSON(http.StatusAccepted, resp)
}

// abortWith maps domain errors onto HTTP status codes.
func abortWith(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnsupportedFormat),
		errors.Is(err, domain.ErrNotReady):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConfig):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
