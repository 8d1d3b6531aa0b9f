package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SceneStudio-server/config"
	"SceneStudio-server/models"
)

type fakeAnalyzer struct {
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, texts []string, onProgress func(done, total int)) ([]PlannedScene, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]PlannedScene, len(texts))
	for i, s := range texts {
		out[i] = PlannedScene{SourceText: s, VisualPrompt: "vis: " + s, MotionPrompt: "mot"}
	}
	if onProgress != nil {
		onProgress(len(texts), len(texts))
	}
	return out, nil
}

type fakeMediaGen struct {
	mu            sync.Mutex
	imageAttempts []int
	audioAttempts []int
	upscaleCalls  []int
	videoCalls    []int
	failImage     map[int]bool
	onImage       func(index int)
}

func (f *fakeMediaGen) SceneImage(ctx context.Context, runID string, index int, prompt string) (string, error) {
	f.mu.Lock()
	f.imageAttempts = append(f.imageAttempts, index)
	f.mu.Unlock()
	if f.onImage != nil {
		f.onImage(index)
	}
	if f.failImage[index] {
		return "", errors.New("image provider exploded")
	}
	return fmt.Sprintf("http://media/scene-%d.png", index), nil
}

func (f *fakeMediaGen) SceneVideo(ctx context.Context, runID string, index int, imageURL, motionPrompt string) (string, error) {
	f.mu.Lock()
	f.videoCalls = append(f.videoCalls, index)
	f.mu.Unlock()
	return fmt.Sprintf("http://media/scene-%d.mp4", index), nil
}

func (f *fakeMediaGen) SceneSpeech(ctx context.Context, runID string, index int, text, voiceID, apiKey string) (string, error) {
	f.mu.Lock()
	f.audioAttempts = append(f.audioAttempts, index)
	f.mu.Unlock()
	return fmt.Sprintf("http://media/scene-%d.mp3", index), nil
}

func (f *fakeMediaGen) UpscaleImage(ctx context.Context, runID string, index int, imageURL, apiKey string) (string, error) {
	f.mu.Lock()
	f.upscaleCalls = append(f.upscaleCalls, index)
	f.mu.Unlock()
	return fmt.Sprintf("http://media/scene-%d-up.png", index), nil
}

type fakeSaver struct {
	mu   sync.Mutex
	runs []*models.Run
}

func (f *fakeSaver) Save(r *models.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, r)
	return nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.IntroGroupSize = 2
	cfg.Pipeline.BodyGroupSize = 4
	// 测试中不引入真实等待
	cfg.Pipeline.ImagePaceSeconds = 0
	cfg.Pipeline.ImageRetries = 0
	return cfg
}

func bodyScript(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("Body scene %d.", i+1)
	}
	return strings.Join(lines, "\n")
}

func newTestOrchestrator(cfg *config.Config, gen MediaGenerator, saver RunSaver, body string) *Orchestrator {
	return NewOrchestrator(cfg, &fakeAnalyzer{}, gen, saver, OrchestratorOptions{
		RunID:      "run-1",
		Title:      "t",
		BodyText:   body,
		AIKey:      "key",
		SpeechKey:  "skey",
		UpscaleKey: "ukey",
		VoiceID:    "nara",
	})
}

func planAndConfirm(t *testing.T, o *Orchestrator) {
	t.Helper()
	require.NoError(t, o.Plan(context.Background()))
	require.NoError(t, o.Confirm())
}

func TestPlanPreconditions(t *testing.T) {
	cfg := testConfig()

	o := NewOrchestrator(cfg, &fakeAnalyzer{}, &fakeMediaGen{}, nil, OrchestratorOptions{RunID: "r", AIKey: "key"})
	err := o.Plan(context.Background())
	assert.True(t, errors.Is(err, ErrPreconditionFailed), "空文本必须直接失败")
	assert.Equal(t, models.RunStatusIdle, o.State().Status)

	o = NewOrchestrator(cfg, &fakeAnalyzer{}, &fakeMediaGen{}, nil, OrchestratorOptions{RunID: "r", BodyText: "Hello."})
	err = o.Plan(context.Background())
	assert.True(t, errors.Is(err, ErrPreconditionFailed), "缺主凭证必须直接失败")
}

func TestPlanBuildsOrderedScenes(t *testing.T) {
	cfg := testConfig()
	o := NewOrchestrator(cfg, &fakeAnalyzer{}, &fakeMediaGen{}, nil, OrchestratorOptions{
		RunID:     "r",
		AIKey:     "key",
		IntroText: "Intro one. Intro two. Intro three.",
		BodyText:  "Body one. Body two. Body three. Body four. Body five.",
	})
	require.NoError(t, o.Plan(context.Background()))

	st := o.State()
	assert.Equal(t, models.RunStatusPlanReady, st.Status)
	// 开场按 2 句分组在前，正文按 4 句分组在后，序号连续
	require.Len(t, st.Scenes, 4)
	for i, sc := range st.Scenes {
		assert.Equal(t, i+1, sc.Index)
		assert.Empty(t, sc.MediaUrl)
		assert.Empty(t, sc.AudioUrl)
	}
	assert.True(t, st.Scenes[0].IsIntroSegment)
	assert.True(t, st.Scenes[1].IsIntroSegment)
	assert.False(t, st.Scenes[2].IsIntroSegment)
	assert.False(t, st.Scenes[3].IsIntroSegment)
	assert.Equal(t, "Intro one. Intro two.", st.Scenes[0].OriginalText)
	assert.Equal(t, "Intro three.", st.Scenes[1].OriginalText)
}

func TestPlanFailureCommitsNothing(t *testing.T) {
	cfg := testConfig()
	o := NewOrchestrator(cfg, &fakeAnalyzer{err: errors.New("provider down")}, &fakeMediaGen{}, nil, OrchestratorOptions{
		RunID: "r", AIKey: "key", BodyText: "Hello there.",
	})
	require.Error(t, o.Plan(context.Background()))

	st := o.State()
	assert.Equal(t, models.RunStatusIdle, st.Status)
	assert.Empty(t, st.Scenes)
	assert.Contains(t, st.LastError, "provider down")
}

func TestConfirmOnlyFromPlanReady(t *testing.T) {
	o := newTestOrchestrator(testConfig(), &fakeMediaGen{}, nil, bodyScript(2))
	err := o.Confirm()
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	require.NoError(t, o.Plan(context.Background()))
	require.NoError(t, o.Confirm())
	assert.Equal(t, models.RunStatusProducing, o.State().Status)
}

func TestBatchRequiresProducing(t *testing.T) {
	o := newTestOrchestrator(testConfig(), &fakeMediaGen{}, nil, bodyScript(2))
	require.NoError(t, o.Plan(context.Background()))
	err := o.RunBatch(context.Background(), BatchImages)
	assert.True(t, errors.Is(err, ErrPreconditionFailed))
}

func TestImageBatchPartialFailure(t *testing.T) {
	gen := &fakeMediaGen{failImage: map[int]bool{3: true}}
	o := newTestOrchestrator(testConfig(), gen, nil, bodyScript(5))
	planAndConfirm(t, o)

	// 批量整体不报错
	require.NoError(t, o.RunBatch(context.Background(), BatchImages))

	st := o.State()
	for _, sc := range st.Scenes {
		if sc.Index == 3 {
			assert.Empty(t, sc.MediaUrl)
		} else {
			assert.NotEmpty(t, sc.MediaUrl, "scene %d", sc.Index)
		}
	}
	// 只保留最后一次错误，并指明分镜
	assert.Contains(t, st.LastError, "scene 3")
	// 升序处理
	assert.Equal(t, []int{1, 2, 3, 4, 5}, gen.imageAttempts)
}

func TestImageBatchSkipsPopulatedScenes(t *testing.T) {
	gen := &fakeMediaGen{}
	o := newTestOrchestrator(testConfig(), gen, nil, bodyScript(3))
	planAndConfirm(t, o)

	require.NoError(t, o.Store().SetMediaUrl(2, "http://media/existing.png"))
	require.NoError(t, o.RunBatch(context.Background(), BatchImages))

	assert.Equal(t, []int{1, 3}, gen.imageAttempts)
	sc, _ := o.Store().Get(2)
	assert.Equal(t, "http://media/existing.png", sc.MediaUrl)
}

func TestBatchCancellationStopsNewWork(t *testing.T) {
	gen := &fakeMediaGen{}
	o := newTestOrchestrator(testConfig(), gen, nil, bodyScript(5))
	planAndConfirm(t, o)

	// 分镜 2 的调用开始后触发取消：该调用跑完，3-5 不再尝试
	gen.onImage = func(index int) {
		if index == 2 {
			assert.True(t, o.Cancel())
		}
	}
	require.NoError(t, o.RunBatch(context.Background(), BatchImages))

	assert.Equal(t, []int{1, 2}, gen.imageAttempts)
	sc, _ := o.Store().Get(2)
	assert.NotEmpty(t, sc.MediaUrl, "已开始的调用允许完成并写回")
}

func TestCancelWithoutActiveBatch(t *testing.T) {
	o := newTestOrchestrator(testConfig(), &fakeMediaGen{}, nil, bodyScript(2))
	assert.False(t, o.Cancel())
}

func TestAutoSaveAfterImageBatch(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.AutoSaveBatch = true
	saver := &fakeSaver{}
	o := newTestOrchestrator(cfg, &fakeMediaGen{}, saver, bodyScript(2))
	planAndConfirm(t, o)

	require.NoError(t, o.RunBatch(context.Background(), BatchImages))
	assert.Equal(t, 1, saver.count())

	// TTS 批量默认不自动保存（可配置的非对称行为）
	require.NoError(t, o.RunBatch(context.Background(), BatchTTS))
	assert.Equal(t, 1, saver.count())
}

func TestNoAutoSaveAfterCancelledBatch(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.AutoSaveBatch = true
	saver := &fakeSaver{}
	gen := &fakeMediaGen{}
	o := newTestOrchestrator(cfg, gen, saver, bodyScript(3))
	planAndConfirm(t, o)

	gen.onImage = func(index int) {
		if index == 1 {
			o.Cancel()
		}
	}
	require.NoError(t, o.RunBatch(context.Background(), BatchImages))
	assert.Equal(t, 0, saver.count())
}

func TestUpscaleReplacesMediaUrl(t *testing.T) {
	gen := &fakeMediaGen{}
	o := newTestOrchestrator(testConfig(), gen, nil, bodyScript(1))
	planAndConfirm(t, o)

	require.NoError(t, o.Store().SetMediaUrl(1, "http://media/scene-1.png"))
	require.NoError(t, o.UpscaleScene(context.Background(), 1))

	sc, _ := o.Store().Get(1)
	assert.Equal(t, "http://media/scene-1-up.png", sc.MediaUrl)
	assert.False(t, sc.UpscalePending)
}

func TestUpscaleRequiresCredentialAndImage(t *testing.T) {
	gen := &fakeMediaGen{}
	o := NewOrchestrator(testConfig(), &fakeAnalyzer{}, gen, nil, OrchestratorOptions{
		RunID: "r", AIKey: "key", BodyText: bodyScript(1),
	})
	planAndConfirm(t, o)

	// 无凭证
	err := o.UpscaleScene(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	o2 := newTestOrchestrator(testConfig(), gen, nil, bodyScript(1))
	planAndConfirm(t, o2)
	// 有凭证但还没有图
	err = o2.UpscaleScene(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrPreconditionFailed))
}

func TestGenerateVideoRequiresImage(t *testing.T) {
	o := newTestOrchestrator(testConfig(), &fakeMediaGen{}, nil, bodyScript(1))
	planAndConfirm(t, o)

	err := o.GenerateVideo(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrPreconditionFailed))

	require.NoError(t, o.Store().SetMediaUrl(1, "http://media/scene-1.png"))
	require.NoError(t, o.GenerateVideo(context.Background(), 1))
	sc, _ := o.Store().Get(1)
	assert.Equal(t, "http://media/scene-1.mp4", sc.VideoUrl)
}

func TestRegenerateImageAutoSave(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.AutoSaveImage = true
	saver := &fakeSaver{}
	o := newTestOrchestrator(cfg, &fakeMediaGen{}, saver, bodyScript(1))
	planAndConfirm(t, o)

	require.NoError(t, o.RegenerateImage(context.Background(), 1))
	assert.Equal(t, 1, saver.count())
}

func TestSaveSnapshotIsDeepCopy(t *testing.T) {
	saver := &fakeSaver{}
	o := newTestOrchestrator(testConfig(), &fakeMediaGen{}, saver, bodyScript(2))
	planAndConfirm(t, o)
	require.NoError(t, o.Save())

	require.Equal(t, 1, saver.count())
	run := saver.runs[0]
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 2, run.SceneCount)
	assert.Equal(t, "ukey", run.UpscaleKey)

	// 快照与在线仓互不影响
	require.NoError(t, o.Store().SetMediaUrl(1, "after-save"))
	assert.Empty(t, run.Scenes[0].MediaUrl)
}

func TestRestoreFromSnapshot(t *testing.T) {
	o := newTestOrchestrator(testConfig(), &fakeMediaGen{}, nil, "")
	o.RestoreFrom(&models.Run{
		ID: "run-1",
		Scenes: models.SceneList{
			{Index: 1, OriginalText: "a", MediaUrl: "http://media/a.png"},
		},
		UpscaleKey: "stored-key",
	})
	st := o.State()
	assert.Equal(t, models.RunStatusProducing, st.Status)
	require.Len(t, st.Scenes, 1)
	assert.Equal(t, "http://media/a.png", st.Scenes[0].MediaUrl)
}
