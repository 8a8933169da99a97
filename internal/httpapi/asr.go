package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/timoverbrugghe/subgen-go/internal/core"
)

// mountASR registers the subtitle-manager ASR protocol surface (§6): the
// transcribe/detect-language endpoints a tool like Bazarr drives as if
// talking to a whisper-asr-webservice instance.
func mountASR(r chi.Router, deps *Deps) {
	r.Post("/asr", handleASRTranscribe(deps))
	r.Post("/detect-language", handleASRDetectLanguage(deps))
	// Some deployments sit behind a reverse proxy that double-slashes this
	// path; register it as a harmless second route rather than reject it.
	r.Post("//detect-language", handleASRDetectLanguage(deps))

	r.Get("/asr", informational("POST audio_file (multipart) to this endpoint to transcribe it. See /status for version info."))
	r.Get("/detect-language", informational("POST audio_file (multipart) to this endpoint to detect its spoken language."))
	r.Get("/", informational("subgen ASR-compatible transcription service. POST /asr or /detect-language; GET /status for version."))
	r.Get("/status", handleStatus(deps))
}

func informational(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": message})
	}
}

func handleStatus(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := deps.Version
		if version == "" {
			version = "subgen dev"
		}
		writeJSON(w, http.StatusOK, map[string]string{"version": version})
	}
}

// asrRequest is the parsed form of the shared multipart body both /asr and
// /detect-language accept.
type asrRequest struct {
	audio     []byte
	fileName  string
	task      string
	language  string
	videoFile string
	encode    bool
	output    string
}

func parseASRRequest(r *http.Request) (*asrRequest, error) {
	if err := r.ParseMultipartForm(256 << 20); err != nil {
		return nil, fmt.Errorf("malformed multipart body: %w", err)
	}
	file, header, err := r.FormFile("audio_file")
	if err != nil {
		return nil, fmt.Errorf("missing audio_file field: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("reading audio_file: %w", err)
	}

	encode := true
	if v := r.FormValue("encode"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			encode = parsed
		}
	}
	task := r.FormValue("task")
	if task == "" || task == "translate" {
		task = "transcribe" // translate is coerced to transcribe, §6
	}
	output := r.FormValue("output")
	if output == "" {
		output = "srt"
	}

	return &asrRequest{
		audio:     data,
		fileName:  header.Filename,
		task:      task,
		language:  r.FormValue("language"),
		videoFile: r.FormValue("video_file"),
		encode:    encode,
		output:    output,
	}, nil
}

// handleASRTranscribe implements POST /asr: transcribe the uploaded audio
// and return it rendered in the requested subtitle format as plain text.
func handleASRTranscribe(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseASRRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if deps.Log != nil && req.videoFile != "" {
			deps.Log.Debug().Str("videoFile", req.videoFile).Msg("asr: transcribe request")
		}

		result, _, err := deps.Orchestrator.TranscribeAudioBytes(
			r.Context(), req.audio, req.language, core.SourceASR, req.fileName, !req.encode, "", "",
		)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var body string
		switch req.output {
		case "vtt":
			body = core.EmitVTT(result.Segments)
		case "txt":
			body = core.EmitPlainText(result.Segments)
		default:
			body = core.EmitSRT(result.Segments)
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Source", sourceHeader(deps))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}

func sourceHeader(deps *Deps) string {
	name := deps.SourceName
	if name == "" {
		name = "subgen"
	}
	return "Transcribed using " + name
}

// handleASRDetectLanguage implements POST /detect-language: identify the
// spoken language of the uploaded audio without running a full
// transcription job.
func handleASRDetectLanguage(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseASRRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		code, err := deps.Detector.DetectFromBytes(r.Context(), req.audio, !req.encode)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		langCode := "und"
		langName := "unknown"
		if code.Iso1 != "" {
			langCode = code.Iso1
			langName = code.EnglishName
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"detected_language": langName,
			"language_code":     langCode,
		})
	}
}
