package plugin

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// ParseParamsFromStruct 从结构体的 param tag 解析参数定义
//
//	type ShapeParams struct {
//	    Name   string `param:"name=name,required=false,default=,description=注册名，默认为结构体名"`
//	    Naming string `param:"name=naming,required=false,default=snake,description=字段命名策略: snake 或 none"`
//	}
func ParseParamsFromStruct(v any) []ParamDef {
	typ := reflect.TypeOf(v)
	if typ == nil {
		return nil
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	var params []ParamDef
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("param")
		if tag == "" {
			continue
		}
		if def := parseParamTag(tag); def.Name != "" {
			params = append(params, def)
		}
	}
	return params
}

// parseParamTag 解析 name=xxx,required=true,default=xxx,description=xxx
// description 消费剩余全部内容，可以包含逗号
func parseParamTag(tag string) ParamDef {
	var param ParamDef

	rest := tag
	for rest != "" {
		entry, next, _ := strings.Cut(rest, ",")
		key, value, _ := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		if key == "description" {
			_, value, _ = strings.Cut(rest, "=")
			next = ""
		}

		switch key {
		case "name":
			param.Name = value
		case "required":
			param.Required = cast.ToBool(value)
		case "default":
			param.Default = value
		case "description":
			param.Description = value
		}
		rest = next
	}

	return param
}

// ParseAnnotationParams 将注解参数填充到 target（结构体指针）
// 注解中缺省的参数使用 paramDefs 中的默认值；必填参数缺失时返回错误
func ParseAnnotationParams(annotation *Annotation, target any, paramDefs []ParamDef) error {
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("参数目标必须是非 nil 指针, 得到: %T", target)
	}
	val = val.Elem()
	typ := val.Type()
	if typ.Kind() != reflect.Struct {
		return fmt.Errorf("参数目标必须是结构体指针, 得到: %T", target)
	}

	defMap := make(map[string]ParamDef, len(paramDefs))
	for _, def := range paramDefs {
		defMap[def.Name] = def
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldVal := val.Field(i)
		if !fieldVal.CanSet() {
			continue
		}

		tag := field.Tag.Get("param")
		if tag == "" {
			continue
		}
		name := parseParamTag(tag).Name
		if name == "" {
			continue
		}

		value, ok := annotation.Params[strings.ToLower(name)]
		if !ok {
			def := defMap[name]
			if def.Required {
				return fmt.Errorf("@%s 缺少必填参数 %s", annotation.Name, name)
			}
			value = def.Default
		}

		if err := setFieldValue(fieldVal, value); err != nil {
			return fmt.Errorf("@%s 参数 %s=%q 无效: %w", annotation.Name, name, value, err)
		}
	}

	return nil
}

// setFieldValue 按字段类型转换参数值，空字符串视为零值
func setFieldValue(field reflect.Value, value string) error {
	if value == "" {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := cast.ToInt64E(value)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := cast.ToUint64E(value)
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("不支持的参数类型 %s", field.Type())
	}
	return nil
}
