// Package mcptools exposes résumé scoring as MCP tools.
package mcptools

import (
	"context"
	"errors"
	"strings"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/processor"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Service is the part of the processing layer the tools call.
type Service interface {
	Analyze(ctx context.Context, in processor.AnalyzeInput) (*ats.AtsResult, error)
	Preprocess(ctx context.Context, doc ats.RawDocument) (*processor.PreprocessResult, error)
}

// JDLister lists job descriptions that can be referenced by name.
type JDLister interface {
	List() ([]string, error)
}

type AnalyzeInput struct {
	ResumeText string `json:"resume_text" jsonschema:"Plain text of the resume"`
	JDText     string `json:"jd_text,omitempty" jsonschema:"Job description text; takes precedence over jd_file"`
	JDFile     string `json:"jd_file,omitempty" jsonschema:"Name of a job description in the configured folder, see ats_list_jds"`
	Fresher    *bool  `json:"fresher,omitempty" jsonschema:"Force the fresher (true) or experienced (false) weight table"`
}

type PreprocessInput struct {
	ResumeText string `json:"resume_text" jsonschema:"Plain text of the resume"`
}

type PreprocessOutput struct {
	Preview  processor.ResumePreview `json:"preview"`
	Sections map[string]string       `json:"sections"`
	Skills   ats.SkillProfile        `json:"skills"`
}

type ListJDsOutput struct {
	JDs []string `json:"jds"`
}

// Register adds the ATS tools to server. ats_list_jds is only added when
// jds is set.
func Register(server *mcp.Server, svc Service, jds JDLister) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ats_analyze",
		Description: "Score a resume against a job description. Returns the total ATS score (0-100), per-component scores, the fresher/non_fresher label, matched and missing skills and contact details.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, *ats.AtsResult, error) {
		if strings.TrimSpace(in.ResumeText) == "" {
			return nil, nil, errors.New("resume_text is required")
		}
		res, err := svc.Analyze(ctx, processor.AnalyzeInput{
			Document: textDocument(in.ResumeText),
			JDName:   in.JDFile,
			JDText:   in.JDText,
			Fresher:  in.Fresher,
		})
		if err != nil {
			return nil, nil, err
		}
		return nil, res, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "ats_preprocess",
		Description: "Extract contact details, sections and skills from a resume without scoring it.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in PreprocessInput) (*mcp.CallToolResult, *PreprocessOutput, error) {
		if strings.TrimSpace(in.ResumeText) == "" {
			return nil, nil, errors.New("resume_text is required")
		}
		res, err := svc.Preprocess(ctx, textDocument(in.ResumeText))
		if err != nil {
			return nil, nil, err
		}
		out := &PreprocessOutput{Preview: res.Preview, Sections: map[string]string{}}
		if res.Result != nil {
			for _, k := range res.Result.Sections.Keys() {
				out.Sections[string(k)] = res.Result.Sections.Get(k)
			}
			out.Skills = res.Result.Skills
		}
		return nil, out, nil
	})

	if jds == nil {
		return
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ats_list_jds",
		Description: "List the job descriptions that ats_analyze accepts as jd_file.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, *ListJDsOutput, error) {
		names, err := jds.List()
		if err != nil {
			return nil, nil, err
		}
		return nil, &ListJDsOutput{JDs: names}, nil
	})
}

func textDocument(text string) ats.RawDocument {
	return ats.RawDocument{Name: "resume.txt", Format: ats.FormatTXT, Data: []byte(text)}
}
