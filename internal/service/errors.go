package service

// ValidationError 输入校验失败，Field 为第一个不合法的字段
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
