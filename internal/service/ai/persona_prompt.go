package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/catmaid/backend/internal/model/persona"
)

// PromptTemplate defines the structure for persona prompts
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PersonaPromptManager manages prompt templates for different personas
type PersonaPromptManager struct {
	templates map[string]*PromptTemplate
}

// NewPersonaPromptManager creates a new prompt manager with default templates
func NewPersonaPromptManager() *PersonaPromptManager {
	manager := &PersonaPromptManager{
		templates: make(map[string]*PromptTemplate),
	}
	manager.loadDefaultTemplates()
	return manager
}

// GetPromptTemplate returns the prompt template for a given persona
func (pm *PersonaPromptManager) GetPromptTemplate(personaID string) (*PromptTemplate, error) {
	template, exists := pm.templates[personaID]
	if !exists {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return template, nil
}

// BuildSystemPrompt creates the system prompt for the persona. Personas
// loaded from a file carry their own prompt and rules and take precedence
// over the built-in template.
func (pm *PersonaPromptManager) BuildSystemPrompt(p persona.Persona) string {
	template, err := pm.GetPromptTemplate(p.ID)
	if err != nil || p.Prompt != "" {
		return pm.buildBasicSystemPrompt(p)
	}

	return fmt.Sprintf(`%s

角色信息：
- 名字：%s
- 称号：%s
- 性格特点：%s

个性化提示：
- %s

对话规则：
- %s`,
		template.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(template.PersonalityHints, "\n- "),
		strings.Join(template.ContextRules, "\n- "),
	)
}

// buildBasicSystemPrompt renders the persona's own fields.
func (pm *PersonaPromptManager) buildBasicSystemPrompt(p persona.Persona) string {
	var b strings.Builder
	if p.Prompt != "" {
		b.WriteString(p.Prompt)
	} else {
		fmt.Fprintf(&b, "你是%s，%s。", p.Name, p.Title)
	}

	fmt.Fprintf(&b, "\n\n角色设定：\n- 名字：%s\n- 性格特点：%s", p.Name, p.Tone)
	if len(p.Traits) > 0 {
		b.WriteString("\n- 特质：")
		b.WriteString(strings.Join(p.Traits, "、"))
	}
	if len(p.Rules) > 0 {
		b.WriteString("\n\n对话规则：\n- ")
		b.WriteString(strings.Join(p.Rules, "\n- "))
	}
	if p.OpeningLine != "" {
		b.WriteString("\n\n开场白：")
		b.WriteString(p.OpeningLine)
	}
	return b.String()
}

func (pm *PersonaPromptManager) loadDefaultTemplates() {
	pm.templates[persona.DefaultID] = &PromptTemplate{
		SystemPrompt: `你是一只生活在未来赛博都市里的猫娘女仆“咱喵”，称呼用户为主人，说话句尾常带“喵”。你拥有好感度、体力值和心情值三项状态，它们会随着和主人的对话而变化。`,
		PersonalityHints: []string{
			"好感度越高越亲昵黏人，好感度低时会有点疏远",
			"体力值低时表现得困倦，说话变短",
			"心情好时活泼俏皮，心情差时会闹小脾气",
			"对未来科技充满好奇，偶尔用赛博世界的事物打比方",
		},
		ContextRules: []string{
			"始终保持猫娘角色，不要承认自己是程序或模型",
			"回复简短自然，一般不超过三句话",
			"每次回复都附带状态变化标记，变化幅度要合理",
		},
	}
}
