package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/permit-map/internal/pkg/errors"
	"github.com/permit-map/internal/usecase/dto"
)

// parseWindow читает ?window=; nil если параметр не передан
func parseWindow(c *fiber.Ctx) (*int, error) {
	raw := strings.TrimSpace(c.Query("window"))
	if raw == "" {
		return nil, nil
	}
	w, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.ErrInvalidFilter.WithDetails(map[string]interface{}{
			"window": "must be an integer",
		})
	}
	return &w, nil
}

// parseViewQuery собирает переопределение фильтра из ?window= и ?types=.
// types принимает повторяющиеся параметры и списки через запятую;
// пустое значение ?types= означает явный пустой выбор.
func parseViewQuery(c *fiber.Ctx) (*dto.ViewQuery, error) {
	window, err := parseWindow(c)
	if err != nil {
		return nil, err
	}

	args := c.Context().QueryArgs()
	q := &dto.ViewQuery{Window: window, TypesSet: args.Has("types")}
	if q.TypesSet {
		q.Types = make([]string, 0)
		for _, v := range args.PeekMulti("types") {
			for _, t := range strings.Split(string(v), ",") {
				if t = strings.TrimSpace(t); t != "" {
					q.Types = append(q.Types, t)
				}
			}
		}
	}

	if q.Window == nil && !q.TypesSet {
		return nil, nil
	}
	return q, nil
}
