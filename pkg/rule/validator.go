// Package rule 封装 go-playground/validator，统一用 rule 标签
// 校验配置结构和请求体.
package rule

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	inst *validator.Validate
	once sync.Once
)

// initValidator 优先复用 gin binding 的引擎，这样 ShouldBind 和
// 手动校验走同一套自定义规则；引擎类型不符时退回新建.
func initValidator() {
	if engine := binding.Validator.Engine(); engine != nil {
		if v, ok := engine.(*validator.Validate); ok {
			inst = v
			inst.SetTagName("rule")

			return
		}
	}

	inst = validator.New()
	inst.SetTagName("rule")
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局校验引擎，按需初始化.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 注册自定义校验规则.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidationErrors 字段名到可读错误信息的映射.
type ValidationErrors map[string]string

// ValidateStruct 按 rule 标签校验整个结构体.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 校验单个值，如 ValidateVar(req.Kind, "required").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias 注册规则别名.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}
