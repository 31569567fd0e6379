package delivery

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// TemplateService renders Liquid templates for outbound messages, with a
// parse cache for repeated renders of the same template.
type TemplateService struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewTemplateService creates the template service with the filters the
// message templates rely on.
func NewTemplateService() *TemplateService {
	engine := liquid.NewEngine()

	// Default value filter: {{ name | default: "Cliente" }}
	engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	return &TemplateService{engine: engine}
}

// Parse compiles a template string and returns any syntax errors. Called
// at startup so a broken template fails fast instead of mid-delivery.
func (ts *TemplateService) Parse(templateStr string) error {
	_, err := ts.engine.ParseString(templateStr)
	return err
}

// Render processes a template with the given context. On parse or render
// errors the original template text is returned along with the error so a
// delivery can still proceed with a degraded message.
func (ts *TemplateService) Render(cacheKey, templateStr string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := ts.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(ctx)
		}
	}

	tpl, err := ts.engine.ParseString(templateStr)
	if err != nil {
		return templateStr, err
	}
	if cacheKey != "" {
		ts.cache.Store(cacheKey, tpl)
	}

	out, err := tpl.RenderString(ctx)
	if err != nil {
		return templateStr, err
	}
	return out, nil
}
