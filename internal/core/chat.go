package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"virtual-clinic/internal/llm"
)

const chatTemperature = 0.6

// ChatService runs the anamnesis dialogue with the simulated patient.
type ChatService struct {
	LLM     llm.Client
	Offline bool
	Logger  *zap.Logger
}

// NewChatService constructs a ChatService.
func NewChatService(client llm.Client, offline bool, logger *zap.Logger) *ChatService {
	return &ChatService{LLM: client, Offline: offline, Logger: logger}
}

// Ask records the student question, queries the model with the full
// history and records the patient reply. On provider errors the question
// stays in the transcript so the student can retry without retyping.
func (s *ChatService) Ask(ctx context.Context, enc *Encounter, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyInput
	}
	if enc.Concluded() {
		return "", ErrConcluded
	}
	enc.AppendStudent(question)

	if s.Offline {
		reply := OfflinePatientReply(enc.Persona.Name)
		enc.AppendPatient(reply)
		return reply, nil
	}

	resp, err := s.LLM.Chat(ctx, llm.Request{
		Messages:    enc.History(),
		Temperature: chatTemperature,
	})
	if err != nil {
		s.Logger.Warn("patient reply failed", zap.Error(err))
		return "", err
	}
	enc.AddUsage(resp.Usage)
	enc.AppendPatient(resp.Content)
	return resp.Content, nil
}
