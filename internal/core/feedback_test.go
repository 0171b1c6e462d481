package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"virtual-clinic/internal/llm"
	"virtual-clinic/pkg"
)

type fakeSink struct {
	saved       []*pkg.FeedbackRecord
	evaluations map[int64]*pkg.Evaluation
	nextID      int64
}

func newFakeSink() *fakeSink {
	return &fakeSink{evaluations: map[int64]*pkg.Evaluation{}, nextID: 7}
}

func (f *fakeSink) SaveFeedback(_ context.Context, rec *pkg.FeedbackRecord) (int64, error) {
	id := f.nextID
	f.nextID++
	rec.ID = id
	f.saved = append(f.saved, rec)
	return id, nil
}

func (f *fakeSink) SaveEvaluation(_ context.Context, feedbackID int64, eval *pkg.Evaluation) error {
	f.evaluations[feedbackID] = eval
	return nil
}

type fakeNotifier struct{ ids []int64 }

func (f *fakeNotifier) FeedbackSaved(_ context.Context, id int64) error {
	f.ids = append(f.ids, id)
	return nil
}

func concludedEncounter() *Encounter {
	enc := newTestEncounter()
	enc.AppendStudent("Wo tut es weh?")
	enc.AppendPatient("Rechts unten.")
	enc.setReport("Druckschmerz rechter Unterbauch.")
	enc.setAssessment("- Appendizitis\n- Adnexitis")
	enc.appendRound("Labor, Sonographie", "Leukozytose, Kokarde")
	if err := enc.SetConclusion("Akute Appendizitis", "Laparoskopische Appendektomie"); err != nil {
		panic(err)
	}
	return enc
}

func newFeedbackService(mock *llm.MockClient, sink FeedbackSink, notifier FeedbackNotifier, fixations FixationSource) *FeedbackService {
	return NewFeedbackService(mock, nil, sink, notifier, fixations, false, zap.NewNop())
}

func TestGenerateRequiresConclusion(t *testing.T) {
	svc := newFeedbackService(llm.NewMockClient(), newFakeSink(), nil, nil)
	_, err := svc.Generate(context.Background(), newTestEncounter())
	assert.ErrorIs(t, err, ErrNotConcluded)
}

func TestGeneratePersistsRecord(t *testing.T) {
	mock := llm.NewMockClient(llm.MockResponse{
		Content: "Das Szenario war Akute Appendizitis. Die Diagnose wurde korrekt gestellt.",
		Usage:   llm.Usage{PromptTokens: 500, CompletionTokens: 200, TotalTokens: 700},
	})
	sink := newFakeSink()
	notifier := &fakeNotifier{}
	svc := newFeedbackService(mock, sink, notifier, nil)

	enc := concludedEncounter()
	enc.setMode(pkg.ModeChatGPT)

	feedback, err := svc.Generate(context.Background(), enc)
	require.NoError(t, err)
	assert.Contains(t, feedback, "Akute Appendizitis")

	require.Len(t, sink.saved, 1)
	rec := sink.saved[0]
	assert.Equal(t, "Akute Appendizitis", rec.Scenario)
	assert.Equal(t, "Julia Weber", rec.PatientName)
	assert.Equal(t, pkg.ModeChatGPT, rec.Mode)
	assert.Equal(t, "Laparoskopische Appendektomie", rec.Therapy)
	assert.Equal(t, 700, rec.TotalTokens)
	assert.Contains(t, rec.Diagnostics, "### Termin 1")
	assert.Equal(t, int64(7), enc.FeedbackRow())
	assert.Equal(t, []int64{7}, notifier.ids)

	// Second call returns the stored feedback without another model call
	// or a duplicate row.
	again, err := svc.Generate(context.Background(), enc)
	require.NoError(t, err)
	assert.Equal(t, feedback, again)
	assert.Equal(t, 1, mock.CallCount())
	assert.Len(t, sink.saved, 1)
}

func TestGenerateConcurrentCallsShareOneRun(t *testing.T) {
	mock := llm.NewMockClient(llm.MockResponse{Content: "Feedbacktext."})
	sink := newFakeSink()
	svc := newFeedbackService(mock, sink, nil, nil)

	enc := concludedEncounter()
	enc.setMode(pkg.ModeChatGPT)

	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Generate(context.Background(), enc)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, 1, mock.CallCount())
	assert.Len(t, sink.saved, 1)
}

func TestResolveModePriority(t *testing.T) {
	svc := newFeedbackService(llm.NewMockClient(), newFakeSink(), nil,
		&stubFixations{values: map[string]string{pkg.FixFeedbackMode: pkg.ModeAmbossChatGPT}})

	enc := newTestEncounter()
	enc.setMode(pkg.ModeChatGPT)

	// Fixation beats the sticky session mode.
	assert.Equal(t, pkg.ModeAmbossChatGPT, svc.resolveMode(context.Background(), enc))

	// The admin override beats the fixation.
	svc.ModeOverride = pkg.ModeChatGPT
	assert.Equal(t, pkg.ModeChatGPT, svc.resolveMode(context.Background(), enc))
}

func TestResolveModeSticky(t *testing.T) {
	svc := newFeedbackService(llm.NewMockClient(), newFakeSink(), nil, &stubFixations{values: map[string]string{}})
	enc := newTestEncounter()

	first := svc.resolveMode(context.Background(), enc)
	require.Contains(t, []string{pkg.ModeChatGPT, pkg.ModeAmbossChatGPT}, first)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, svc.resolveMode(context.Background(), enc))
	}
}

func TestAmbossModeWithoutKBDegrades(t *testing.T) {
	mock := llm.NewMockClient(llm.MockResponse{Content: "Feedbacktext."})
	svc := newFeedbackService(mock, newFakeSink(), nil, nil)

	enc := concludedEncounter()
	enc.setMode(pkg.ModeAmbossChatGPT)

	_, err := svc.Generate(context.Background(), enc)
	require.NoError(t, err)
	require.Len(t, mock.Calls, 1)
	assert.Contains(t, mock.Calls[0].Messages[0].Content, "Keine Wissensdatenbank-Daten")
}

func TestGenerateOffline(t *testing.T) {
	mock := llm.NewMockClient()
	sink := newFakeSink()
	svc := NewFeedbackService(mock, nil, sink, nil, nil, true, zap.NewNop())

	enc := concludedEncounter()
	feedback, err := svc.Generate(context.Background(), enc)
	require.NoError(t, err)
	assert.Contains(t, feedback, "Offline")
	assert.Equal(t, 0, mock.CallCount())
	assert.Empty(t, sink.saved)
}

func TestSubmitEvaluation(t *testing.T) {
	mock := llm.NewMockClient(llm.MockResponse{Content: "Feedback."})
	sink := newFakeSink()
	svc := newFeedbackService(mock, sink, nil, nil)

	enc := concludedEncounter()
	enc.setMode(pkg.ModeChatGPT)

	eval := pkg.Evaluation{GradeRealism: 2, GradeAnamnesis: 1, GradeFeedback: 2, GradeDidactic: 2, GradeDifficulty: 3, Semester: "7"}
	err := svc.SubmitEvaluation(context.Background(), enc, eval)
	assert.ErrorIs(t, err, ErrNoFeedback)

	_, err = svc.Generate(context.Background(), enc)
	require.NoError(t, err)

	require.NoError(t, svc.SubmitEvaluation(context.Background(), enc, eval))
	require.Contains(t, sink.evaluations, int64(7))
	assert.Equal(t, "7", sink.evaluations[7].Semester)

	err = svc.SubmitEvaluation(context.Background(), enc, eval)
	assert.ErrorIs(t, err, ErrEvaluationDone)
}

func TestSubmitEvaluationOffline(t *testing.T) {
	svc := NewFeedbackService(llm.NewMockClient(), nil, newFakeSink(), nil, nil, true, zap.NewNop())
	enc := concludedEncounter()
	enc.setFeedback("Offline-Feedback")

	err := svc.SubmitEvaluation(context.Background(), enc, pkg.Evaluation{})
	assert.ErrorIs(t, err, ErrOffline)
}
