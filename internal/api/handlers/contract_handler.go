package handlers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/riskintel/backend/internal/contract"
	"github.com/riskintel/backend/internal/service"
	"github.com/riskintel/backend/pkg/logger"
)

type ContractHandler struct {
	contracts *service.Contracts
}

func NewContractHandler(contracts *service.Contracts) *ContractHandler {
	return &ContractHandler{
		contracts: contracts,
	}
}

// UploadContract analyses the uploaded document before responding.
func (h *ContractHandler) UploadContract(c *fiber.Ctx) error {
	filename, data, err := readUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	res, err := h.contracts.Upload(c.Context(), filename, data)
	if err != nil {
		logger.Error("Failed to analyse contract", zap.String("filename", filename), zap.Error(err))
		body := fiber.Map{"error": err.Error()}
		if res != nil {
			body["task_id"] = res.TaskID
			body["status"] = res.Status
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}

	return c.JSON(res)
}

func (h *ContractHandler) GetContract(c *fiber.Ctx) error {
	id := c.Params("id")
	res, err := h.contracts.Result(c.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
	case err != nil:
		logger.Error("Failed to load contract result", zap.String("task_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load contract result"})
	}
	return c.JSON(res)
}

func (h *ContractHandler) ListContracts(c *fiber.Ctx) error {
	tasks, err := h.contracts.List(c.Context())
	if err != nil {
		logger.Error("Failed to list contracts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list contracts",
		})
	}
	return c.JSON(tasks)
}

func (h *ContractHandler) DeleteContract(c *fiber.Ctx) error {
	id := c.Params("id")
	err := h.contracts.Delete(c.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Task not found"})
	case err != nil:
		logger.Error("Failed to delete contract", zap.String("task_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete contract"})
	}
	return c.JSON(fiber.Map{"message": "Task deleted"})
}

// ScanContract runs the local rules only and stores nothing.
func (h *ContractHandler) ScanContract(c *fiber.Ctx) error {
	filename, data, err := readUpload(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	res, err := h.contracts.Scan(filename, data)
	switch {
	case errors.Is(err, contract.ErrTextTooShort):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		logger.Error("Failed to scan contract", zap.String("filename", filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to scan contract"})
	}
	return c.JSON(res)
}

func readUpload(c *fiber.Ctx) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, errors.New("a file field is required")
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return filepath.Base(fh.Filename), data, nil
}
