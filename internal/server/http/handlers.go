package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acoyfellow/tax-agent/internal/errs"
	"github.com/acoyfellow/tax-agent/internal/limiter"
	"github.com/acoyfellow/tax-agent/internal/model"
	"github.com/acoyfellow/tax-agent/internal/tracker"
)

type batchRequest struct {
	Requests []model.FilingRequest `json:"requests"`
}

func (s *Server) fail(c *gin.Context, err error, validation any) {
	if code, _ := statusOf(err); code == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err),
		)
	}
	writeError(c, err, validation)
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "malformed request body", Kind: "invalid_argument"})
		return false
	}
	return true
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleValidate(c *gin.Context) {
	var req model.FilingRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.svc.Validate(c.Request.Context(), req))
}

func (s *Server) handleValidateBatch(c *gin.Context) {
	var body batchRequest
	if !s.bind(c, &body) {
		return
	}
	res, err := s.svc.ValidateBatch(c.Request.Context(), body.Requests)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": res})
}

func (s *Server) handleFile(c *gin.Context) {
	var req model.FilingRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.svc.File(c.Request.Context(), req)
	if err != nil {
		if res.Submission != nil {
			// Filed but not tracked: surface the id so it can be reconciled.
			s.log.Error("filing not tracked", zap.String("submission_id", res.Submission.ID), zap.Error(err))
			c.JSON(http.StatusAccepted, gin.H{"submission": res.Submission, "validation": res.Validation, "warning": "submission not tracked"})
			return
		}
		s.fail(c, err, res.Validation)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleFileBatch(c *gin.Context) {
	var body batchRequest
	if !s.bind(c, &body) {
		return
	}
	res, err := s.svc.FileBatch(c.Request.Context(), body.Requests)
	if err != nil {
		if res.Submission != nil {
			s.log.Error("batch filing not tracked", zap.String("submission_id", res.Submission.ID), zap.Error(err))
			c.JSON(http.StatusAccepted, gin.H{"submission": res.Submission, "validations": res.Validations, "warning": "submission not tracked"})
			return
		}
		var v any
		if res.Validations != nil {
			v = res.Validations
		}
		s.fail(c, err, v)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) handleTransmit(c *gin.Context) {
	id := c.Param("id")
	st, err := s.svc.Transmit(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission_id": id, "status": st})
}

func (s *Server) handleRefresh(c *gin.Context) {
	sub, err := s.svc.RefreshStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) handleGet(c *gin.Context) {
	sub, err := s.tracker.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) handleList(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(c, errs.ErrInvalidArgument, nil)
			return
		}
		limit = n
	}
	subs, err := s.tracker.ListSubmissions(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

func (s *Server) handleWebhook(c *gin.Context) {
	key := limiter.HashIP(c.ClientIP())
	if !s.admitSender(c, key) {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		s.fail(c, errs.ErrInvalidArgument, nil)
		return
	}
	st, err := s.tracker.HandleCallback(c.Request.Context(),
		c.GetHeader(tracker.HeaderSignature),
		c.GetHeader(tracker.HeaderTimestamp),
		body,
	)
	s.recordSender(c, key, err)
	if err != nil {
		s.fail(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": st})
}

// admitSender rejects locked-out senders. A limiter failure lets the
// callback through; the signature check still applies.
func (s *Server) admitSender(c *gin.Context, key []byte) bool {
	if s.senders == nil {
		return true
	}
	ok, left, err := s.senders.Allow(c.Request.Context(), key)
	if err != nil {
		s.log.Warn("callback limiter unavailable", zap.Error(err))
		return true
	}
	if !ok {
		c.Header("Retry-After", strconv.Itoa(int(left.Seconds())+1))
		s.fail(c, errs.ErrRateLimited, nil)
		return false
	}
	return true
}

func (s *Server) recordSender(c *gin.Context, key []byte, err error) {
	if s.senders == nil {
		return
	}
	ctx := c.Request.Context()
	switch {
	case err == nil:
		if lerr := s.senders.Success(ctx, key); lerr != nil {
			s.log.Warn("callback limiter reset", zap.Error(lerr))
		}
	case errors.Is(err, errs.ErrBadSignature):
		blocked, d, lerr := s.senders.Failure(ctx, key)
		if lerr != nil {
			s.log.Warn("callback limiter record", zap.Error(lerr))
			return
		}
		if blocked {
			s.log.Warn("callback sender locked out",
				zap.String("client_ip", c.ClientIP()),
				zap.Duration("for", d),
				zap.Bool("security", true),
			)
		}
	}
}
