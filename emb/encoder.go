// Package emb runs sentence-transformer ONNX models with onnxruntime.
package emb

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
	ort "github.com/yalue/onnxruntime_go"
)

// Config points the encoder at an onnxruntime shared library, an exported
// model and its HuggingFace tokenizer.json.
type Config struct {
	OrtDLL        string
	ModelPath     string
	TokenizerPath string
	MaxSeqLen     int
}

// Encoder turns text into L2-normalized sentence embeddings.
// It is safe for concurrent use; inference calls are serialized.
type Encoder struct {
	mu         sync.Mutex
	tk         *tokenizer.Tokenizer
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	maxSeqLen  int
	padID      int
}

// The onnxruntime environment is process wide; encoders share it and the
// last one to close tears it down.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(dll string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		if dll != "" {
			ort.SetSharedLibraryPath(dll)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()
	if envRefs == 0 {
		return
	}
	envRefs--
	if envRefs == 0 {
		_ = ort.DestroyEnvironment()
	}
}

// Init loads the tokenizer and model.
func (e *Encoder) Init(cfg Config) error {
	if cfg.ModelPath == "" {
		return errors.New("model path is required")
	}
	if cfg.TokenizerPath == "" {
		return errors.New("tokenizer path is required")
	}
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 512
	}
	tk, err := pretrained.FromFile(cfg.TokenizerPath)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	if err := acquireEnvironment(cfg.OrtDLL); err != nil {
		return err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("inspect model: %w", err)
	}
	inputNames, err := selectInputs(inputs)
	if err != nil {
		releaseEnvironment()
		return err
	}
	outputName, err := selectOutput(outputs)
	if err != nil {
		releaseEnvironment()
		return err
	}
	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		releaseEnvironment()
		return fmt.Errorf("create session: %w", err)
	}
	padID := 0
	if id, ok := tk.TokenToId("[PAD]"); ok {
		padID = id
	} else if id, ok := tk.TokenToId("<pad>"); ok {
		padID = id
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tk = tk
	e.session = session
	e.inputNames = inputNames
	e.outputName = outputName
	e.maxSeqLen = cfg.MaxSeqLen
	e.padID = padID
	return nil
}

func selectInputs(inputs []ort.InputOutputInfo) ([]string, error) {
	var names []string
	var hasIDs bool
	for _, in := range inputs {
		switch in.Name {
		case "input_ids":
			hasIDs = true
			names = append(names, in.Name)
		case "attention_mask", "token_type_ids":
			names = append(names, in.Name)
		default:
			return nil, fmt.Errorf("unsupported model input %q", in.Name)
		}
	}
	if !hasIDs {
		return nil, errors.New("model has no input_ids input")
	}
	return names, nil
}

func selectOutput(outputs []ort.InputOutputInfo) (string, error) {
	if len(outputs) == 0 {
		return "", errors.New("model has no outputs")
	}
	for _, out := range outputs {
		if out.Name == "sentence_embedding" {
			return out.Name, nil
		}
	}
	for _, out := range outputs {
		if strings.Contains(out.Name, "last_hidden_state") || out.Name == "token_embeddings" {
			return out.Name, nil
		}
	}
	return outputs[0].Name, nil
}

// Encode embeds a single text.
func (e *Encoder) Encode(text string) ([]float32, error) {
	out, err := e.EncodeBatch([]string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EncodeBatch embeds texts in one inference call, padding to the longest sequence.
func (e *Encoder) EncodeBatch(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, errors.New("encoder is not initialized")
	}
	batch, err := e.tokenize(texts)
	if err != nil {
		return nil, err
	}
	shape := ort.NewShape(int64(len(texts)), int64(batch.seqLen))
	values := make([]ort.Value, 0, len(e.inputNames))
	defer func() {
		for _, v := range values {
			_ = v.Destroy()
		}
	}()
	for _, name := range e.inputNames {
		var data []int64
		switch name {
		case "input_ids":
			data = batch.ids
		case "attention_mask":
			data = batch.mask
		case "token_type_ids":
			data = batch.typeIDs
		}
		tensor, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("create %s tensor: %w", name, err)
		}
		values = append(values, tensor)
	}
	outputs := []ort.Value{nil}
	if err := e.session.Run(values, outputs); err != nil {
		return nil, fmt.Errorf("run model: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()
	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	dims := tensor.GetShape()
	data := tensor.GetData()
	switch len(dims) {
	case 2:
		return splitRows(data, len(texts), int(dims[1])), nil
	case 3:
		return MeanPool(data, len(texts), int(dims[1]), int(dims[2]), batch.mask), nil
	default:
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
}

type tokenBatch struct {
	ids     []int64
	mask    []int64
	typeIDs []int64
	seqLen  int
}

func (e *Encoder) tokenize(texts []string) (tokenBatch, error) {
	encoded := make([]*tokenizer.Encoding, len(texts))
	seqLen := 0
	for i, text := range texts {
		enc, err := e.tk.EncodeSingle(text, true)
		if err != nil {
			return tokenBatch{}, fmt.Errorf("tokenize text %d: %w", i, err)
		}
		encoded[i] = enc
		seqLen = max(seqLen, min(len(enc.Ids), e.maxSeqLen))
	}
	if seqLen == 0 {
		seqLen = 1
	}
	b := tokenBatch{
		ids:     make([]int64, len(texts)*seqLen),
		mask:    make([]int64, len(texts)*seqLen),
		typeIDs: make([]int64, len(texts)*seqLen),
		seqLen:  seqLen,
	}
	for i, enc := range encoded {
		ids := Truncate(enc.Ids, e.maxSeqLen)
		typeIDs := Truncate(enc.TypeIds, e.maxSeqLen)
		row := i * seqLen
		for j := 0; j < seqLen; j++ {
			if j < len(ids) {
				b.ids[row+j] = int64(ids[j])
				b.mask[row+j] = 1
				if j < len(typeIDs) {
					b.typeIDs[row+j] = int64(typeIDs[j])
				}
				continue
			}
			b.ids[row+j] = int64(e.padID)
		}
	}
	return b, nil
}

// Close releases the session and the shared environment reference.
func (e *Encoder) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return
	}
	_ = e.session.Destroy()
	e.session = nil
	e.tk = nil
	releaseEnvironment()
}
