package statement

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
	"github.com/xuri/excelize/v2"
)

var _ = ginkgo.Describe("Server", func() {
	var (
		extractor   *mockExtractor
		textReader  *mockTextReader
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
		client      *http.Client
	)

	setupServer := func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
		ghttpServer = ghttp.NewServer()
		ghttpServer.SetAllowUnhandledRequests(false)
		for i := 0; i < 5; i++ {
			ghttpServer.AppendHandlers(server.ServeHTTP)
		}
	}

	upload := func(filename, contentType string, data []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
		if contentType != "" {
			header["Content-Type"] = []string{contentType}
		}
		part, err := writer.CreatePart(header)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := client.Post(ghttpServer.URL()+"/api/statements", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response) map[string]interface{} {
		defer resp.Body.Close()
		var body map[string]interface{}
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		return body
	}

	ginkgo.BeforeEach(func() {
		extractor = newMockExtractor()
		textReader = &mockTextReader{
			text: "Account statement 2023",
		}
		extractor.textResult = "```csv\nDate,Description,Amount\n03/15,Coffee,-4.50\n03/16,\"ACME, INC\",\"1,200.00\"\n```"
		service = NewServiceWithDeps(extractor, newMockCache(), &mockStaging{}, textReader, &mockRasterizer{}, fixedTime{now: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)})
		auth = BasicAuth{}
		server = NewServerWithMux(service, auth, http.NewServeMux())

		jar, err := cookiejar.New(nil)
		Expect(err).NotTo(HaveOccurred())
		client = &http.Client{Jar: jar}
		setupServer()
	})

	ginkgo.AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	ginkgo.Describe("handleIndex", func() {
		ginkgo.It("should return the HTML interface", func() {
			resp, err := client.Get(ghttpServer.URL() + "/")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("Statement Ledger"))
		})

		ginkgo.It("should reject other methods", func() {
			resp, err := client.Post(ghttpServer.URL()+"/", "text/plain", nil)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusMethodNotAllowed))
		})
	})

	ginkgo.Describe("handleStaticJS", func() {
		ginkgo.It("should serve JavaScript", func() {
			resp, err := client.Get(ghttpServer.URL() + "/static/app.js")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/javascript; charset=utf-8"))
		})
	})

	ginkgo.Describe("handleUpload", func() {
		ginkgo.When("a PDF with a text layer is uploaded", func() {
			ginkgo.It("should return the parsed rows", func() {
				resp := upload("march.pdf", "application/pdf", []byte("%PDF-1.4"))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))

				body := decode(resp)
				entry := body["entry"].(map[string]interface{})
				rows := entry["rows"].([]interface{})
				Expect(rows).To(HaveLen(2))
				Expect(rows[1]).To(Equal(map[string]interface{}{
					"date":        "03/16/2023",
					"description": "ACME, INC",
					"amount":      "1200.00",
				}))
				Expect(body["cached"]).To(BeFalse())
				Expect(body).NotTo(HaveKey("warning"))
			})

			ginkgo.It("should issue a session cookie", func() {
				resp := upload("march.pdf", "application/pdf", []byte("%PDF-1.4"))
				resp.Body.Close()

				var found bool
				for _, c := range resp.Cookies() {
					if c.Name == sessionCookie {
						found = true
						Expect(c.Value).To(HaveLen(36))
						Expect(c.HttpOnly).To(BeTrue())
					}
				}
				Expect(found).To(BeTrue())
			})

			ginkgo.It("should answer a repeat upload from the cache", func() {
				upload("march.pdf", "application/pdf", []byte("%PDF-1.4")).Body.Close()
				body := decode(upload("march.pdf", "application/pdf", []byte("%PDF-1.4")))
				Expect(body["cached"]).To(BeTrue())
				Expect(extractor.calls()).To(Equal(1))
			})
		})

		ginkgo.When("the upload has no declared content type", func() {
			ginkgo.It("should detect it from the extension", func() {
				resp := upload("march.pdf", "", []byte("%PDF-1.4"))
				resp.Body.Close()
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				Expect(textReader.paths).To(HaveLen(1))
			})
		})

		ginkgo.When("extraction fails", func() {
			ginkgo.BeforeEach(func() {
				extractor.textErr = errBoom
			})

			ginkgo.It("should return a warning rather than an error status", func() {
				resp := upload("march.pdf", "application/pdf", []byte("%PDF-1.4"))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				body := decode(resp)
				Expect(body["warning"]).To(HavePrefix("Extraction failed"))
			})
		})

		ginkgo.When("no file is provided", func() {
			ginkgo.It("should return Bad Request", func() {
				body := &bytes.Buffer{}
				writer := multipart.NewWriter(body)
				Expect(writer.WriteField("other", "value")).To(Succeed())
				Expect(writer.Close()).To(Succeed())

				resp, err := client.Post(ghttpServer.URL()+"/api/statements", writer.FormDataContentType(), body)
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(ContainSubstring("No file was selected"))
			})
		})

		ginkgo.When("the body is not a multipart form", func() {
			ginkgo.It("should return Bad Request", func() {
				resp, err := client.Post(ghttpServer.URL()+"/api/statements", "application/json", strings.NewReader("{}"))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(decode(resp)["error"]).To(Equal("Error parsing form"))
			})
		})
	})

	ginkgo.Describe("handleCurrent", func() {
		ginkgo.It("should return Not Found before any upload", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/statements/current")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(decode(resp)["error"]).To(Equal("Upload a statement first"))
		})

		ginkgo.It("should return the session's result after an upload", func() {
			upload("march.pdf", "application/pdf", []byte("%PDF-1.4")).Body.Close()

			resp, err := client.Get(ghttpServer.URL() + "/api/statements/current")
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			Expect(body["entry"].(map[string]interface{})["filename"]).To(Equal("march.pdf"))
		})

		ginkgo.It("should not leak results to another session", func() {
			upload("march.pdf", "application/pdf", []byte("%PDF-1.4")).Body.Close()

			resp, err := http.Get(ghttpServer.URL() + "/api/statements/current")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	ginkgo.Describe("handleReparse", func() {
		reparse := func(payload string) *http.Response {
			resp, err := client.Post(ghttpServer.URL()+"/api/statements/current/parse", "application/json", strings.NewReader(payload))
			Expect(err).NotTo(HaveOccurred())
			return resp
		}

		ginkgo.It("should return Not Found before any upload", func() {
			resp := reparse(`{"raw_text": "01/02/2023,Deposit,100.00"}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		ginkgo.It("should reject a body without raw_text", func() {
			resp := reparse(`{"text": "x"}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		ginkgo.It("should re-parse the edited text", func() {
			upload("march.pdf", "application/pdf", []byte("%PDF-1.4")).Body.Close()

			resp := reparse(`{"raw_text": "Date,Description,Amount\n04/01,Rent,45.00-"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body := decode(resp)
			rows := body["entry"].(map[string]interface{})["rows"].([]interface{})
			Expect(rows).To(ConsistOf(map[string]interface{}{
				"date":        "04/01/2023",
				"description": "Rent",
				"amount":      "-45.00",
			}))
		})
	})

	ginkgo.Describe("downloads", func() {
		ginkgo.BeforeEach(func() {
			upload("march.pdf", "application/pdf", []byte("%PDF-1.4")).Body.Close()
		})

		ginkgo.It("should return the rows as CSV", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/statements/current/csv")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/csv; charset=utf-8"))
			Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="qbo_upload.csv"`))

			records, err := csv.NewReader(resp.Body).ReadAll()
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(Equal([][]string{
				{"Date", "Description", "Amount"},
				{"03/15/2023", "Coffee", "-4.50"},
				{"03/16/2023", "ACME, INC", "1200.00"},
			}))
		})

		ginkgo.It("should return the rows as XLSX", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/statements/current/xlsx")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(Equal(`attachment; filename="qbo_upload.xlsx"`))

			f, err := excelize.OpenReader(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			defer f.Close()
			rows, err := f.GetRows("Transactions")
			Expect(err).NotTo(HaveOccurred())
			Expect(rows).To(HaveLen(3))
			Expect(rows[1][1]).To(Equal("Coffee"))
		})

		ginkgo.It("should reflect edits made through re-parse", func() {
			resp, err := client.Post(ghttpServer.URL()+"/api/statements/current/parse", "application/json",
				strings.NewReader(`{"raw_text": "05/01,Refund,10.00\n05/02,bad amount"}`))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			resp, err = client.Get(ghttpServer.URL() + "/api/statements/current/csv")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("Date,Description,Amount\n05/01/2023,Refund,10.00\n"))
		})
	})

	ginkgo.Describe("metrics", func() {
		ginkgo.It("should expose Prometheus metrics", func() {
			upload("march.pdf", "application/pdf", []byte("%PDF-1.4")).Body.Close()

			resp, err := client.Get(ghttpServer.URL() + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			data, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("statement_ledger_documents_total"))
		})
	})

	ginkgo.Describe("authenticate", func() {
		ginkgo.BeforeEach(func() {
			auth = BasicAuth{Username: "user", Password: "pass"}
			server = NewServerWithMux(service, auth, http.NewServeMux())
			setupServer()
		})

		ginkgo.It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:pass")))
			Expect(server.authenticate(req)).To(BeTrue())
		})

		ginkgo.It("should reject invalid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("user:wrong")))
			Expect(server.authenticate(req)).To(BeFalse())
		})

		ginkgo.It("should reject a malformed header", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/", nil)
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Authorization", "Basic !!!")
			Expect(server.authenticate(req)).To(BeFalse())
		})

		ginkgo.It("should answer unauthenticated requests with a challenge", func() {
			resp, err := client.Get(ghttpServer.URL() + "/api/statements/current")
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(Equal(`Basic realm="Statement Ledger"`))
		})
	})

	ginkgo.Describe("corsMiddleware", func() {
		ginkgo.It("should answer preflight requests", func() {
			handler := corsMiddleware(server)
			ghttpServer.Close()
			ghttpServer = ghttp.NewServer()
			ghttpServer.AppendHandlers(handler.ServeHTTP)

			req, err := http.NewRequest(http.MethodOptions, ghttpServer.URL()+"/api/statements", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := client.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})

var _ = ginkgo.Describe("ContentTypeFor", func() {
	ginkgo.DescribeTable("choosing a content type",
		func(filename, declared string, data []byte, expected string) {
			Expect(ContentTypeFor(filename, declared, data)).To(Equal(expected))
		},
		ginkgo.Entry("declared type wins", "a.pdf", "Image/PNG", nil, "image/png"),
		ginkgo.Entry("octet-stream falls back to the extension", "a.HEIC", "application/octet-stream", nil, "image/heic"),
		ginkgo.Entry("missing type uses the extension", "scan.jpeg", "", nil, "image/jpeg"),
		ginkgo.Entry("unknown extension is sniffed", "statement", "", []byte("%PDF-1.7\n"), "application/pdf"),
	)
})
