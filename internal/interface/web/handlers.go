package web

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/taskpaylabs/taskpayd/internal/core/application"
	"github.com/taskpaylabs/taskpayd/internal/core/domain"
)

type handlers struct {
	taskSvc     *application.TaskService
	responseSvc *application.ResponseService
}

type signedBody struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

func (b signedBody) signed() application.Signed {
	return application.Signed{Address: b.Address, Signature: b.Signature}
}

type taskView struct {
	Id                string `json:"id"`
	Owner             string `json:"owner"`
	Status            string `json:"status"`
	Price             string `json:"price"`
	Token             string `json:"token,omitempty"`
	WithdrawSignature string `json:"withdrawSignature,omitempty"`
	CreatedAt         int64  `json:"createdAt"`
}

type responseView struct {
	Id                  string `json:"id"`
	TaskId              string `json:"taskId"`
	Worker              string `json:"worker"`
	Status              string `json:"status"`
	Payload             string `json:"payload"`
	SettlementBlob      string `json:"settlementBlob,omitempty"`
	SettlementSignature string `json:"settlementSignature,omitempty"`
	CreatedAt           int64  `json:"createdAt"`
}

func toTaskView(t *domain.Task) taskView {
	return taskView{
		Id:                t.Id,
		Owner:             t.Owner,
		Status:            t.Status.String(),
		Price:             t.Price,
		Token:             t.Token,
		WithdrawSignature: t.WithdrawSignature,
		CreatedAt:         t.CreatedAt,
	}
}

func toResponseView(r *domain.Response) responseView {
	return responseView{
		Id:                  r.Id,
		TaskId:              r.TaskId,
		Worker:              r.Worker,
		Status:              r.Status.String(),
		Payload:             r.Payload,
		SettlementBlob:      r.SettlementBlob,
		SettlementSignature: r.SettlementSignature,
		CreatedAt:           r.CreatedAt,
	}
}

func (h *handlers) createTask(c *gin.Context) {
	var body struct {
		signedBody
		Id string `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	task, err := h.taskSvc.CreateTask(c.Request.Context(), application.CreateTaskRequest{
		Signed: body.signed(),
		Id:     body.Id,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTaskView(task))
}

func (h *handlers) getTask(c *gin.Context) {
	task, err := h.taskSvc.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskView(task))
}

func (h *handlers) fundTask(c *gin.Context) {
	var body struct {
		signedBody
		Price string `json:"price" binding:"required"`
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	task, err := h.taskSvc.FundTask(c.Request.Context(), application.FundTaskRequest{
		Signed: body.signed(),
		Id:     c.Param("id"),
		Price:  body.Price,
		Token:  body.Token,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskView(task))
}

func (h *handlers) cancelTask(c *gin.Context) {
	var body signedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	task, err := h.taskSvc.CancelTask(c.Request.Context(), application.CancelTaskRequest{
		Signed: body.signed(),
		Id:     c.Param("id"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTaskView(task))
}

func (h *handlers) listTasks(c *gin.Context) {
	var body signedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	tasks, err := h.taskSvc.ListTasks(c.Request.Context(), application.ListTasksRequest{
		Signed: body.signed(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	views := make([]taskView, 0, len(tasks))
	for i := range tasks {
		views = append(views, toTaskView(&tasks[i]))
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

func (h *handlers) listResponses(c *gin.Context) {
	var body signedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	responses, err := h.responseSvc.ListResponses(c.Request.Context(), application.ListResponsesRequest{
		Signed: body.signed(),
		TaskId: c.Param("id"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	views := make([]responseView, 0, len(responses))
	for i := range responses {
		views = append(views, toResponseView(&responses[i]))
	}
	c.JSON(http.StatusOK, gin.H{"responses": views})
}

func (h *handlers) submitResponse(c *gin.Context) {
	var body struct {
		signedBody
		Id      string `json:"id"`
		TaskId  string `json:"taskId" binding:"required"`
		Payload string `json:"payload" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	response, err := h.responseSvc.SubmitResponse(c.Request.Context(), application.SubmitResponseRequest{
		Signed:  body.signed(),
		Id:      body.Id,
		TaskId:  body.TaskId,
		Payload: body.Payload,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toResponseView(response))
}

func (h *handlers) getResponse(c *gin.Context) {
	response, err := h.responseSvc.GetResponse(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponseView(response))
}

func (h *handlers) decideResponse(c *gin.Context) {
	var body struct {
		signedBody
		Worker              string `json:"worker" binding:"required"`
		Price               string `json:"price" binding:"required"`
		Accept              bool   `json:"accept"`
		SettlementBlob      string `json:"settlementBlob"`
		SettlementSignature string `json:"settlementSignature"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	response, err := h.responseSvc.DecideResponse(c.Request.Context(), application.DecideResponseRequest{
		Signed:              body.signed(),
		ResponseId:          c.Param("id"),
		Worker:              body.Worker,
		Price:               body.Price,
		Accept:              body.Accept,
		SettlementBlob:      body.SettlementBlob,
		SettlementSignature: body.SettlementSignature,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toResponseView(response))
}

func (h *handlers) settlement(c *gin.Context) {
	var body signedBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, fmt.Errorf("%s: %w", err, domain.ErrInvalidRequest))
		return
	}
	task, response, err := h.taskSvc.Settlement(c.Request.Context(), application.SettlementRequest{
		Signed:     body.signed(),
		ResponseId: c.Param("id"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"task":                toTaskView(task),
		"response":            toResponseView(response),
		"settlementSignature": response.SettlementSignature,
	})
}
