package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ima/broker"
	"ima/internal/logging"
)

const (
	msgSent        = "Mensagem enviada com sucesso!"
	msgCountFailed = "Erro ao obter a contagem da fila"
	msgDrainStart  = "Processamento da fila iniciado com sucesso!"
	msgProbeOK     = "Teste de conexões realizado com sucesso!"
	msgProbeFailed = "Falha no teste de conexões"
)

type handlers struct {
	deps Deps
}

type sendRequest struct {
	Mensagem *string `json:"mensagem"`
}

type drainRequest struct {
	IniciarProcessamento bool `json:"iniciar_processamento"`
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if req.Mensagem == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "campo 'mensagem' ausente"})
		return
	}
	if err := h.deps.Intake.Submit(c.Request.Context(), *req.Mensagem); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgSent})
}

func (h *handlers) queueCount(c *gin.Context) {
	n := h.deps.Count(c.Request.Context())
	if n == broker.CountUnknown {
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgCountFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"contagem_fila": n})
}

// processQueue runs the drain in the request goroutine but detached from the
// request's cancellation, and answers 200 whatever the drain did.
func (h *handlers) processQueue(c *gin.Context) {
	var req drainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logging.L().Debug("processar-fila: unreadable body, not forcing", "err", err)
		req.IniciarProcessamento = false
	}
	h.deps.Drain.Drain(context.WithoutCancel(c.Request.Context()), req.IniciarProcessamento)
	c.JSON(http.StatusOK, gin.H{"message": msgDrainStart})
}

func (h *handlers) testConnections(c *gin.Context) {
	res := h.deps.Probe(c.Request.Context())
	if !res.OK() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    msgProbeFailed,
			"rabbitmq": res.Broker,
			"database": res.Store,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  msgProbeOK,
		"rabbitmq": res.Broker,
		"database": res.Store,
	})
}

func (h *handlers) sentMessages(c *gin.Context) {
	sent := h.deps.Intake.Sent()
	if sent == nil {
		sent = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"mensagens": sent, "total": len(sent)})
}
