package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	v1 "github.com/jordanharrington/visualgate/api/v1"
	"github.com/jordanharrington/visualgate/internal/generation"
	"github.com/jordanharrington/visualgate/internal/json"
	"github.com/jordanharrington/visualgate/internal/relay"
	"github.com/jordanharrington/visualgate/internal/remote"
	"github.com/jordanharrington/visualgate/internal/volc"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"
)

var _ = Describe("Text-to-video lifecycle", func() {
	var (
		router http.Handler
		polls  atomic.Int32
	)

	BeforeEach(func() {
		polls.Store(0)
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			body, _ := io.ReadAll(r.Body)
			Expect(r.Header.Get("Authorization")).To(HavePrefix("HMAC-SHA256 Credential=AKIDEXAMPLE/"))
			Expect(r.Header.Get("X-Content-Sha256")).To(Equal(volc.PayloadHash(body)))

			w.Header().Set("Content-Type", "application/json")
			switch r.URL.Query().Get("Action") {
			case "JimengVGFMT2VL20SubmitTask":
				Expect(gjson.GetBytes(body, "req_key").String()).To(Equal("jimeng_vgfm_t2v_l20"))
				_, _ = io.WriteString(w, `{"ResponseMetadata":{"RequestId":"r-1"},"Result":{"code":10000,"data":{"task_id":"vid-1"}}}`)
			case "JimengVGFMT2VL20GetResult":
				Expect(gjson.GetBytes(body, "task_id").String()).To(Equal("vid-1"))
				if polls.Add(1) == 1 {
					_, _ = io.WriteString(w, `{"Result":{"code":10000,"data":{"status":"generating"}}}`)
					return
				}
				_, _ = io.WriteString(w, `{"Result":{"code":10000,"data":{"status":"done","video_url":"https://cdn.example/vid-1.mp4"}}}`)
			default:
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"ResponseMetadata":{"Error":{"Code":"InvalidAction","Message":"unknown action"}}}`)
			}
		}))
		DeferCleanup(upstream.Close)

		signer, err := volc.NewSigner(volc.Credentials{
			AccessKey: "AKIDEXAMPLE",
			SecretKey: "SECRETEXAMPLE",
			Region:    volc.DefaultRegion,
			Service:   volc.DefaultService,
			Host:      volc.DefaultHost,
		})
		Expect(err).NotTo(HaveOccurred())
		caller := remote.NewCaller(signer,
			remote.WithBaseURL(upstream.URL),
			remote.WithTimeout(2*time.Second),
			remote.WithLogger(quiet))

		router = NewRouter(Deps{
			Generator: generation.NewPipeline(caller, generation.WithLogger(quiet)),
			Forwarder: caller,
			Relay:     relay.New(time.Second),
			Logger:    quiet,
		})
	})

	post := func(path string, v any) v1.TaskResponse {
		bs, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(bs)))
		Expect(rr.Code).To(Equal(http.StatusOK), "body: %s", rr.Body.String())

		var resp v1.TaskResponse
		Expect(json.Unmarshal(rr.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Success).To(BeTrue())
		return resp
	}

	It("goes from pending through processing to done", func() {
		resp := post("/api/text-to-video", v1.GenerateRequest{Prompt: "waves at dusk"})
		Expect(resp.Data.Status).To(Equal("pending"))
		Expect(resp.Data.TaskID).To(Equal("vid-1"))

		resp = post("/api/check-status", v1.PollRequest{TaskID: "vid-1"})
		Expect(resp.Data.Status).To(Equal("processing"))
		Expect(resp.Data.VideoURL).To(BeEmpty())
		Expect(resp.Data.StatusMessage).To(Equal("generating"))

		resp = post("/api/check-status", v1.PollRequest{TaskID: "vid-1"})
		Expect(resp.Data.Status).To(Equal("done"))
		Expect(resp.Data.VideoURL).To(Equal("https://cdn.example/vid-1.mp4"))
		Expect(resp.Data.Result).To(Equal(&v1.Result{Type: v1.ResultVideo, URL: "https://cdn.example/vid-1.mp4"}))
	})
})
