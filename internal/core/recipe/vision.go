package recipe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"recipe-importer/internal/core/ai/service"
	"recipe-importer/internal/core/importer"
	"recipe-importer/internal/pkg/common"

	"go.uber.org/zap"
)

// VisionClient 視覺模型請求
type VisionClient interface {
	ProcessRequest(ctx context.Context, prompt string, imageData string) (*service.Response, error)
}

// VisionImporter 從食譜圖片（截圖、食譜卡、書頁）讀出食譜
type VisionImporter struct {
	aiService VisionClient
}

// NewVisionImporter 創建圖片匯入服務
func NewVisionImporter(aiService VisionClient) *VisionImporter {
	return &VisionImporter{aiService: aiService}
}

const visionPrompt = `Read the recipe shown in this image and return it as JSON. Rules:
1. Only transcribe text that is visible in the image
2. Do not add ingredients or steps that are not shown
3. Keep quantities exactly as written; put the unit in "unit" and the number in "quantity"
4. If a field is not visible, use "" or an empty list
5. All keys and string values must use double quotes
6. Return compact JSON with no commentary
Return this shape:
{"name":"","description":"","ingredients":[{"name":"","quantity":"","unit":""}],"steps":[""],"prepTime":"","cookTime":"","servings":"","tags":[]}`

// visionRecipe 模型回傳的食譜；數量與份量可能是數字
type visionRecipe struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Ingredients []struct {
		Name     string      `json:"name"`
		Quantity interface{} `json:"quantity"`
		Unit     string      `json:"unit"`
	} `json:"ingredients"`
	Steps    []string    `json:"steps"`
	PrepTime string      `json:"prepTime"`
	CookTime string      `json:"cookTime"`
	Servings interface{} `json:"servings"`
	Tags     []string    `json:"tags"`
}

// ImportFromImage 呼叫視覺模型並整理結果
func (v *VisionImporter) ImportFromImage(ctx context.Context, dataURL string) (*common.Recipe, error) {
	common.LogInfo("開始處理圖片食譜匯入",
		zap.String("image_type", getImageType(dataURL)),
	)

	response, err := v.aiService.ProcessRequest(ctx, visionPrompt, dataURL)
	if err != nil {
		common.LogError("AI 服務請求失敗", zap.Error(err))
		return nil, err
	}

	content, err := common.ExtractJSONObject(response.Content)
	if err != nil {
		common.LogError("AI 響應解析失敗",
			zap.Error(err),
			zap.String("content", common.Truncate(response.Content, 200)),
		)
		return nil, common.NewExternalServiceError("image-importer", "parse", err)
	}
	var parsed visionRecipe
	if err := common.ParseJSON(content, &parsed); err != nil {
		common.LogError("AI 響應解析失敗", zap.Error(err))
		return nil, common.NewExternalServiceError("image-importer", "parse", fmt.Errorf("failed to parse AI response: %w", err))
	}

	recipe := parsed.toRecipe()
	common.LogInfo("圖片食譜匯入成功",
		zap.Int("ingredients", len(recipe.Ingredients)),
		zap.Int("steps", len(recipe.Steps)),
		zap.String("image_type", getImageType(dataURL)),
	)
	return recipe, nil
}

func (p visionRecipe) toRecipe() *common.Recipe {
	r := common.NewRecipe()
	if name := strings.TrimSpace(p.Name); name != "" {
		r.Name = name
	}
	r.Description = strings.TrimSpace(p.Description)
	r.PrepTime = strings.TrimSpace(p.PrepTime)
	r.CookTime = strings.TrimSpace(p.CookTime)
	r.Servings = scalarString(p.Servings)

	for _, ing := range p.Ingredients {
		name := strings.TrimSpace(ing.Name)
		if name == "" {
			continue
		}
		r.Ingredients = append(r.Ingredients, common.Ingredient{
			Name:     name,
			Quantity: importer.NormalizeFractions(scalarString(ing.Quantity)),
			Unit:     importer.NormalizeUnit(ing.Unit),
		})
	}
	for _, step := range p.Steps {
		if step = strings.TrimSpace(step); step != "" {
			r.Steps = append(r.Steps, step)
		}
	}
	r.Tags = common.DedupeStrings(p.Tags)
	r.EnsureSlices()
	return r
}

// scalarString 字串或數字轉字串
func scalarString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", t), "0"), ".")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// getImageType 獲取圖片類型
func getImageType(image string) string {
	if image == "" {
		return "empty"
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return "url"
	}
	if strings.HasPrefix(image, "data:image/") {
		parts := strings.Split(image, ";base64,")
		if len(parts) == 2 {
			return "base64_data_uri_" + strings.TrimPrefix(parts[0], "data:image/")
		}
		return "invalid_data_uri"
	}
	if _, err := base64.StdEncoding.DecodeString(image); err == nil {
		return "base64"
	}
	return "unknown_format"
}
