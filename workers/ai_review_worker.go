// workers/ai_review_worker.go
package workers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"bounty-publish-system/models"
	"gorm.io/gorm"
)

const (
	groqEndpoint   = "https://api.groq.com/openai/v1/chat/completions"
	groqModel      = "llama-3.3-70b-versatile"
	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash-exp:generateContent"
)

// ReviewResult is the scorer's opaque verdict: a 0-100 score plus feedback.
type ReviewResult struct {
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
	Provider string   `json:"-"`
}

// ReviewWorker scores submissions asynchronously. Groq is the primary
// provider, Gemini the fallback. A scoring failure is logged and dropped —
// it never reaches the submitter.
type ReviewWorker struct {
	DB        *gorm.DB
	client    *http.Client
	groqKey   string
	geminiKey string
}

func NewReviewWorker(db *gorm.DB) *ReviewWorker {
	w := &ReviewWorker{
		DB:        db,
		client:    &http.Client{Timeout: 60 * time.Second},
		groqKey:   os.Getenv("GROQ_API_KEY"),
		geminiKey: os.Getenv("GEMINI_API_KEY"),
	}
	if w.groqKey == "" && w.geminiKey == "" {
		log.Println("⚠️  No AI review API keys configured — submissions will not be scored")
	}
	return w
}

// Trigger kicks off review of a submission in the background and returns
// immediately. The triggering request never waits on, or learns about, the
// outcome.
func (w *ReviewWorker) Trigger(submissionID, content, bountyTitle, bountyDescription string) {
	go func() {
		result, err := w.analyze(content, bountyTitle, bountyDescription)
		if err != nil {
			log.Printf("[AI_REVIEW] scoring failed for submission %s: %v", submissionID, err)
			return
		}

		notes := strings.Join(result.Feedback, "\n")
		update := map[string]interface{}{
			"ai_score": result.Score,
			"ai_notes": notes,
		}
		if err := w.DB.Model(&models.Submission{}).Where("id = ?", submissionID).Updates(update).Error; err != nil {
			log.Printf("[AI_REVIEW] failed to persist score for submission %s: %v", submissionID, err)
			return
		}
		log.Printf("[AI_REVIEW] submission %s scored %d via %s", submissionID, result.Score, result.Provider)
	}()
}

func (w *ReviewWorker) analyze(content, title, description string) (*ReviewResult, error) {
	if w.groqKey != "" {
		result, err := w.analyzeWithGroq(content, title, description)
		if err == nil {
			return result, nil
		}
		log.Printf("[AI_REVIEW] groq failed, trying gemini: %v", err)
	}
	if w.geminiKey != "" {
		return w.analyzeWithGemini(content, title, description)
	}
	return nil, fmt.Errorf("no review provider available")
}

func reviewPrompt(content, title, description string) string {
	return fmt.Sprintf(`You are a code reviewer for a bounty platform.

BOUNTY CONTEXT:
Title: %s
Description: %s

SUBMISSION TO REVIEW:
%s

TASK:
Analyze this submission for security, efficiency, and code quality.
Give it a score out of 100 and exactly 3 bullet points of direct feedback.

RESPOND ONLY IN THIS JSON FORMAT:
{"score": <number 0-100>, "feedback": ["<point 1>", "<point 2>", "<point 3>"]}`, title, description, content)
}

func (w *ReviewWorker) analyzeWithGroq(content, title, description string) (*ReviewResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model": groqModel,
		"messages": []map[string]string{
			{"role": "system", "content": "You are a direct code reviewer. Always respond with valid JSON only."},
			{"role": "user", "content": reviewPrompt(content, title, description)},
		},
		"temperature": 0.7,
		"max_tokens":  1000,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", groqEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.groqKey)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("groq API returned %d: %s", resp.StatusCode, string(raw))
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode groq response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("groq returned no choices")
	}

	result, err := parseReviewJSON(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	result.Provider = "groq"
	return result, nil
}

func (w *ReviewWorker) analyzeWithGemini(content, title, description string) (*ReviewResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": reviewPrompt(content, title, description)}}},
		},
	})
	if err != nil {
		return nil, err
	}

	url := geminiEndpoint + "?key=" + w.geminiKey
	resp, err := w.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, string(raw))
	}

	var generated struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&generated); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(generated.Candidates) == 0 || len(generated.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	result, err := parseReviewJSON(generated.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return nil, err
	}
	result.Provider = "gemini"
	return result, nil
}

// parseReviewJSON extracts the JSON verdict from a model response that may be
// wrapped in prose or code fences, and clamps the score to 0-100.
func parseReviewJSON(text string) (*ReviewResult, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in review response")
	}

	var result ReviewResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("failed to parse review response: %w", err)
	}

	if result.Score < 0 {
		result.Score = 0
	}
	if result.Score > 100 {
		result.Score = 100
	}
	if len(result.Feedback) > 3 {
		result.Feedback = result.Feedback[:3]
	}
	return &result, nil
}
