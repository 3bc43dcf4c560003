package dto

// FilterRequest - новое состояние фильтра (окно + выбранные типы)
type FilterRequest struct {
	Window int      `json:"window" validate:"min=0"`
	Types  []string `json:"types" validate:"max=500,dive,permit_type"`
}

// ViewQuery - переопределение фильтра для одного запроса; nil-поля берутся из текущего фильтра
type ViewQuery struct {
	Window *int     `json:"window,omitempty" validate:"omitempty,min=0"`
	Types  []string `json:"types,omitempty" validate:"omitempty,max=500,dive,permit_type"`
	// TypesSet отличает явный пустой список от отсутствующего параметра
	TypesSet bool `json:"-"`
}

// ReloadRequest - запрос на перезагрузку датасетов
type ReloadRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=200"`
}
