// Package generation describes each generation flow the visual API offers and
// runs submissions and status queries through the remote caller.
package generation

import (
	"strings"
	"unicode/utf8"

	v1 "github.com/jordanharrington/visualgate/api/v1"
	"github.com/jordanharrington/visualgate/internal/task"
	"github.com/samber/lo"
)

const (
	versionJimeng = "2024-06-06"
	versionCV     = "2022-08-31"

	reqKeyT2V  = "jimeng_vgfm_t2v_l20"
	reqKeyI2V  = "jimeng_vgfm_i2v_l20"
	reqKeyT2I  = "jimeng_high_aes_general_v21_L"
	reqKeyI2I  = "high_aes_scheduler_svr_controlnet_v2.0"
	reqKeyEdit = "seededit_v3.0"

	defaultAspectRatio   = "16:9"
	defaultImageSize     = 512
	defaultControlNet    = "depth"
	defaultControlWeight = 0.6
	defaultEditScale     = 0.5
	defaultI2IPrompt     = "keep the original style, generate a new image"

	// Short prompts are expanded by the provider's own prompt model.
	preLLMMaxRunes    = 30
	rephraserMaxRunes = 50

	maxImageSize = 2048
)

// editResultOptions is sent as req_json on image-edit status queries.
const editResultOptions = `{"return_url":true,"logo_info":{"add_logo":false}}`

var (
	aspectRatios    = []string{"16:9", "4:3", "1:1", "3:4", "9:16", "21:9"}
	controlNetTypes = []string{"canny", "depth", "pose"}
)

// Flow is one submit endpoint of the remote API.
type Flow struct {
	Kind    task.Kind
	Action  string
	Version string
	ReqKey  string
	Locator task.Locator

	// Sync flows answer with the finished result instead of a task id. The
	// pipeline assigns IDPrefix plus a fresh uuid as the task id.
	Sync     bool
	IDPrefix string

	build func(in v1.GenerateRequest) (any, error)
}

// Body validates in and returns the flow's request body without req_key.
func (f Flow) Body(in v1.GenerateRequest) (any, error) {
	return f.build(in)
}

// PollFlow is one status endpoint of the remote API.
type PollFlow struct {
	Name       string
	Action     string
	Version    string
	ReqKey     string
	ReqJSON    string
	Locator    task.Locator
	Vocabulary task.Vocabulary
}

var (
	TextToVideo = Flow{
		Kind:    task.TextToVideo,
		Action:  "JimengVGFMT2VL20SubmitTask",
		Version: versionJimeng,
		ReqKey:  reqKeyT2V,
		Locator: task.VideoLocator,
		build:   buildTextToVideo,
	}
	ImageToVideo = Flow{
		Kind:    task.ImageToVideo,
		Action:  "JimengVGFMI2VL20SubmitTask",
		Version: versionJimeng,
		ReqKey:  reqKeyI2V,
		Locator: task.VideoLocator,
		build:   buildImageToVideo,
	}
	TextToImage = Flow{
		Kind:     task.TextToImage,
		Action:   "JimengHighAESGeneralV21L",
		Version:  versionJimeng,
		ReqKey:   reqKeyT2I,
		Locator:  task.ImageLocator,
		Sync:     true,
		IDPrefix: "img_",
		build:    buildTextToImage,
	}
	ImageToImage = Flow{
		Kind:     task.ImageToImage,
		Action:   "CVProcess",
		Version:  versionCV,
		ReqKey:   reqKeyI2I,
		Locator:  task.ImageLocator,
		Sync:     true,
		IDPrefix: "img2img_",
		build:    buildImageToImage,
	}
	ImageEdit = Flow{
		Kind:    task.ImageEdit,
		Action:  "CVSync2AsyncSubmitTask",
		Version: versionCV,
		ReqKey:  reqKeyEdit,
		Locator: task.ImageLocator,
		build:   buildImageEdit,
	}

	VideoPoll = PollFlow{
		Name:       "video",
		Action:     "JimengVGFMT2VL20GetResult",
		Version:    versionJimeng,
		ReqKey:     reqKeyT2V,
		Locator:    task.VideoLocator,
		Vocabulary: task.DefaultVocabulary,
	}
	ImageToVideoPoll = PollFlow{
		Name:       "image-to-video",
		Action:     "JimengVGFMI2VL20GetResult",
		Version:    versionJimeng,
		ReqKey:     reqKeyI2V,
		Locator:    task.VideoLocator,
		Vocabulary: task.DefaultVocabulary,
	}
	ImageEditPoll = PollFlow{
		Name:       "image-edit",
		Action:     "CVSync2AsyncGetResult",
		Version:    versionCV,
		ReqKey:     reqKeyEdit,
		ReqJSON:    editResultOptions,
		Locator:    task.ImageLocator,
		Vocabulary: task.DefaultVocabulary,
	}
)

// Flows lists every submit flow by kind.
var Flows = map[task.Kind]Flow{
	task.TextToVideo:  TextToVideo,
	task.ImageToVideo: ImageToVideo,
	task.TextToImage:  TextToImage,
	task.ImageToImage: ImageToImage,
	task.ImageEdit:    ImageEdit,
}

// VideoPollFor picks the status flow for a video task. Tasks submitted through
// image-to-video are queried with that flow's own keys.
func VideoPollFor(kind string) (PollFlow, error) {
	switch task.Kind(kind) {
	case "", task.TextToVideo:
		return VideoPoll, nil
	case task.ImageToVideo:
		return ImageToVideoPoll, nil
	}
	return PollFlow{}, &ValidationError{Field: "kind", Message: "must be text-to-video or image-to-video"}
}

type textToVideoBody struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

type imageToVideoBody struct {
	Prompt           string   `json:"prompt"`
	BinaryDataBase64 []string `json:"binary_data_base64"`
	AspectRatio      string   `json:"aspect_ratio"`
}

type textToImageBody struct {
	Prompt    string `json:"prompt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Seed      int    `json:"seed"`
	ReturnURL bool   `json:"return_url"`
	UsePreLLM bool   `json:"use_pre_llm"`
}

type controlNetArg struct {
	Type            string  `json:"type"`
	BinaryDataIndex int     `json:"binary_data_index"`
	Strength        float64 `json:"strength"`
}

type logoInfo struct {
	AddLogo bool `json:"add_logo"`
}

type imageToImageBody struct {
	Prompt           string          `json:"prompt"`
	BinaryDataBase64 []string        `json:"binary_data_base64"`
	ControlNetArgs   []controlNetArg `json:"controlnet_args"`
	Seed             int             `json:"seed"`
	Scale            float64         `json:"scale"`
	DDIMSteps        int             `json:"ddim_steps"`
	UseRephraser     bool            `json:"use_rephraser"`
	ReturnURL        bool            `json:"return_url"`
	LogoInfo         logoInfo        `json:"logo_info"`
}

type imageEditBody struct {
	BinaryDataBase64 []string `json:"binary_data_base64"`
	Prompt           string   `json:"prompt"`
	Seed             int      `json:"seed"`
	Scale            float64  `json:"scale"`
}

func buildTextToVideo(in v1.GenerateRequest) (any, error) {
	prompt, err := requirePrompt(in.Prompt)
	if err != nil {
		return nil, err
	}
	ratio, err := aspectRatio(in.AspectRatio)
	if err != nil {
		return nil, err
	}
	return textToVideoBody{Prompt: prompt, AspectRatio: ratio}, nil
}

func buildImageToVideo(in v1.GenerateRequest) (any, error) {
	img, err := requireImage(in.ImageBase64)
	if err != nil {
		return nil, err
	}
	ratio, err := aspectRatio(in.AspectRatio)
	if err != nil {
		return nil, err
	}
	return imageToVideoBody{
		Prompt:           strings.TrimSpace(in.Prompt),
		BinaryDataBase64: []string{img},
		AspectRatio:      ratio,
	}, nil
}

func buildTextToImage(in v1.GenerateRequest) (any, error) {
	prompt, err := requirePrompt(in.Prompt)
	if err != nil {
		return nil, err
	}
	width, err := imageSize("width", in.Width)
	if err != nil {
		return nil, err
	}
	height, err := imageSize("height", in.Height)
	if err != nil {
		return nil, err
	}
	return textToImageBody{
		Prompt:    prompt,
		Width:     width,
		Height:    height,
		Seed:      -1,
		ReturnURL: true,
		UsePreLLM: utf8.RuneCountInString(prompt) <= preLLMMaxRunes,
	}, nil
}

func buildImageToImage(in v1.GenerateRequest) (any, error) {
	img, err := requireImage(in.ImageBase64)
	if err != nil {
		return nil, err
	}
	ctype := lo.Ternary(in.ControlNetType == "", defaultControlNet, strings.ToLower(in.ControlNetType))
	if !lo.Contains(controlNetTypes, ctype) {
		return nil, &ValidationError{Field: "controlnet_type", Message: "must be one of " + strings.Join(controlNetTypes, ", ")}
	}
	strength := lo.FromPtrOr(in.Strength, defaultControlWeight)
	if strength <= 0 || strength > 1 {
		return nil, &ValidationError{Field: "strength", Message: "must be in (0, 1]"}
	}

	prompt := strings.TrimSpace(in.Prompt)
	useRephraser := prompt == "" || utf8.RuneCountInString(prompt) < rephraserMaxRunes
	if prompt == "" {
		prompt = defaultI2IPrompt
	}
	return imageToImageBody{
		Prompt:           prompt,
		BinaryDataBase64: []string{img},
		ControlNetArgs:   []controlNetArg{{Type: ctype, BinaryDataIndex: 0, Strength: strength}},
		Seed:             -1,
		Scale:            3.0,
		DDIMSteps:        16,
		UseRephraser:     useRephraser,
		ReturnURL:        true,
		LogoInfo:         logoInfo{AddLogo: false},
	}, nil
}

func buildImageEdit(in v1.GenerateRequest) (any, error) {
	img, err := requireImage(in.ImageBase64)
	if err != nil {
		return nil, err
	}
	prompt, err := requirePrompt(in.Prompt)
	if err != nil {
		return nil, err
	}
	scale := lo.FromPtrOr(in.Strength, defaultEditScale)
	if scale < 0 || scale > 1 {
		return nil, &ValidationError{Field: "strength", Message: "must be in [0, 1]"}
	}
	return imageEditBody{
		BinaryDataBase64: []string{img},
		Prompt:           prompt,
		Seed:             -1,
		Scale:            scale,
	}, nil
}

func requirePrompt(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", &ValidationError{Field: "prompt", Message: "is required"}
	}
	return p, nil
}

// requireImage accepts raw base64 or a data URL and returns the raw base64.
func requireImage(b64 string) (string, error) {
	b64 = strings.TrimSpace(b64)
	if strings.HasPrefix(b64, "data:") {
		if _, rest, ok := strings.Cut(b64, ";base64,"); ok {
			b64 = rest
		}
	}
	if b64 == "" {
		return "", &ValidationError{Field: "imageBase64", Message: "is required"}
	}
	return b64, nil
}

func aspectRatio(r string) (string, error) {
	if r == "" {
		return defaultAspectRatio, nil
	}
	if !lo.Contains(aspectRatios, r) {
		return "", &ValidationError{Field: "aspect_ratio", Message: "must be one of " + strings.Join(aspectRatios, ", ")}
	}
	return r, nil
}

func imageSize(field string, n int) (int, error) {
	if n == 0 {
		return defaultImageSize, nil
	}
	if n < 0 || n > maxImageSize {
		return 0, &ValidationError{Field: field, Message: "must be between 1 and 2048"}
	}
	return n, nil
}
