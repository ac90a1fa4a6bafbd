package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/service"
)

var registerOnce sync.Once

// registerValidation 让校验错误使用 json/form 标签中的字段名
func registerValidation() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
}

// bindError 将绑定错误转换为 ValidationError，只报告第一个字段
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &service.ValidationError{Field: fe.Field(), Message: fieldMessage(fe)}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &service.ValidationError{
			Field:   typeErr.Field,
			Message: fmt.Sprintf("%q must be a %s", typeErr.Field, kindName(typeErr.Type.Kind())),
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) {
		return &service.ValidationError{Message: "Invalid request body"}
	}

	return &service.ValidationError{Message: err.Error()}
}

func kindName(k reflect.Kind) string {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return k.String()
	}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%q is required", field)
	case "min":
		switch fe.Kind() {
		case reflect.Slice:
			return fmt.Sprintf("%q must contain at least %s items", field, fe.Param())
		case reflect.String:
			return fmt.Sprintf("%q length must be at least %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%q must be greater than or equal to %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%q length must be less than or equal to %s characters long", field, fe.Param())
		}
		return fmt.Sprintf("%q must be less than or equal to %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%q must be greater than %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%q must be a valid uri", field)
	case "oneof":
		return fmt.Sprintf("%q must be one of [%s]", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%q is invalid", field)
	}
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// parseTime 解析 ISO 8601 时间，空字符串返回 nil
func parseTime(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, &service.ValidationError{
		Field:   field,
		Message: fmt.Sprintf("%q must be in ISO 8601 date format", field),
	}
}

// FilterQuery 各查询接口共用的过滤参数
type FilterQuery struct {
	DeviceID       string `form:"device_id" binding:"omitempty,max=50"`
	DateFrom       string `form:"date_from"`
	DateTo         string `form:"date_to"`
	ViolationsOnly bool   `form:"violations_only"`
}

// Filter 转换为查询条件，date_to 不得早于 date_from
func (q FilterQuery) Filter() (models.SpeedEventFilter, error) {
	f := models.SpeedEventFilter{DeviceID: q.DeviceID, ViolationsOnly: q.ViolationsOnly}

	var err error
	if f.DateFrom, err = parseTime("date_from", q.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = parseTime("date_to", q.DateTo); err != nil {
		return f, err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, &service.ValidationError{
			Field:   "date_to",
			Message: `"date_to" must be greater than or equal to "date_from"`,
		}
	}
	return f, nil
}

// statsQuery GET /api/speedEvents/stats 的参数，不分页
type statsQuery struct {
	FilterQuery
	MinSpeed  *float64 `form:"min_speed" binding:"omitempty,min=0"`
	Processed *bool    `form:"processed"`
}

func (q statsQuery) Filter() (models.SpeedEventFilter, error) {
	f, err := q.FilterQuery.Filter()
	f.MinSpeed = q.MinSpeed
	f.Processed = q.Processed
	return f, err
}

// listQuery GET /api/speedEvents 的参数
type listQuery struct {
	statsQuery
	Page  int `form:"page,default=1" binding:"min=1"`
	Limit int `form:"limit,default=20" binding:"min=1,max=100"`
}

type distributionQuery struct {
	FilterQuery
	Interval string `form:"interval,default=hour" binding:"oneof=hour day"`
}

type recentQuery struct {
	DeviceID       string `form:"device_id" binding:"omitempty,max=50"`
	ViolationsOnly bool   `form:"violations_only"`
	Limit          int    `form:"limit,default=10" binding:"min=1,max=100"`
}

type liveQuery struct {
	DeviceID        string `form:"device_id" binding:"omitempty,max=50"`
	Since           string `form:"since"`
	UnprocessedOnly bool   `form:"unprocessed_only"`
	ViolationsOnly  bool   `form:"violations_only"`
	Limit           int    `form:"limit,default=50" binding:"min=1,max=200"`
}

type galleryQuery struct {
	FilterQuery
	Processed *bool `form:"processed"`
	Page      int   `form:"page,default=1" binding:"min=1"`
	Limit     int   `form:"limit,default=24" binding:"min=1,max=100"`
}

// speedEventRequest 设备上报请求
type speedEventRequest struct {
	VehicleID       *string  `json:"vehicle_id" binding:"omitempty,max=50"`
	Speed           *float64 `json:"speed" binding:"required,min=0"`
	SpeedLimit      *float64 `json:"speed_limit" binding:"required,min=0"`
	ImageURL        string   `json:"image_url" binding:"omitempty,url,max=255"`
	Latitude        *float64 `json:"latitude" binding:"omitempty,min=-90,max=90"`
	Longitude       *float64 `json:"longitude" binding:"omitempty,min=-180,max=180"`
	LocationAddress *string  `json:"location_address" binding:"omitempty,max=255"`
}

func (r *speedEventRequest) toModel(deviceID string) *models.NewSpeedEvent {
	e := &models.NewSpeedEvent{
		DeviceID:        deviceID,
		VehicleID:       r.VehicleID,
		Speed:           *r.Speed,
		SpeedLimit:      *r.SpeedLimit,
		Latitude:        r.Latitude,
		Longitude:       r.Longitude,
		LocationAddress: r.LocationAddress,
	}
	if r.ImageURL != "" {
		url := r.ImageURL
		e.ImageURL = &url
	}
	return e
}

type bulkProcessRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1,dive,gt=0"`
}

type deviceRequest struct {
	DeviceID string  `json:"device_id" binding:"required,max=50"`
	Name     string  `json:"name" binding:"required,max=100"`
	Location *string `json:"location" binding:"omitempty,max=255"`
}

type deviceUpdateRequest struct {
	Name     string  `json:"name" binding:"required,max=100"`
	Location *string `json:"location" binding:"omitempty,max=255"`
	Status   string  `json:"status" binding:"required,oneof=active inactive"`
}

type settingRequest struct {
	Key   string `json:"key" binding:"required,max=50"`
	Value string `json:"value" binding:"required"`
}

// emptyToNil 空字符串视为未设置
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
