package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vango-dev/photon/pkg/protocol"
	"github.com/vango-dev/photon/pkg/rmi"
	"github.com/vango-dev/photon/pkg/variant"
)

// fakeS3 is an in-memory S3API that pages listings pageSize keys at a time.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	pageSize  int
	listPages int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), pageSize: 2}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPages++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) && k > aws.ToString(in.ContinuationToken) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	if len(keys) > f.pageSize {
		keys = keys[:f.pageSize]
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[len(keys)-1])
	}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func testStores() map[string]func() Store {
	return map[string]func() Store{
		"memory": func() Store { return NewMemoryStore() },
		"s3":     func() Store { return NewS3Store(newFakeS3(), "bucket", "blobs/") },
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range testStores() {
		t.Run(name, func(t *testing.T) {
			store := newStore()

			for _, key := range []string{"b/2", "a/1", "b/1", "c", "b/3"} {
				if err := store.Put(ctx, key, []byte("v:"+key)); err != nil {
					t.Fatalf("Put(%q) error: %v", key, err)
				}
			}

			got, err := store.Get(ctx, "b/1")
			if err != nil || string(got) != "v:b/1" {
				t.Errorf("Get = (%q, %v)", got, err)
			}
			if _, err := store.Get(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Get missing error = %v, want ErrNotFound", err)
			}

			keys, err := store.List(ctx, "b/")
			if err != nil {
				t.Fatalf("List error: %v", err)
			}
			if strings.Join(keys, ",") != "b/1,b/2,b/3" {
				t.Errorf("List(b/) = %v", keys)
			}
			all, _ := store.List(ctx, "")
			if len(all) != 5 {
				t.Errorf("List() = %v", all)
			}

			if err := store.Delete(ctx, "c"); err != nil {
				t.Errorf("Delete error: %v", err)
			}
			if err := store.Delete(ctx, "c"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second Delete error = %v, want ErrNotFound", err)
			}
			if m, ok := store.(*MemoryStore); ok && m.Len() != 4 {
				t.Errorf("Len = %d, want 4", m.Len())
			}

			if err := store.Put(ctx, "a/1", nil); err != nil {
				t.Fatalf("overwrite error: %v", err)
			}
			got, err = store.Get(ctx, "a/1")
			if err != nil || len(got) != 0 {
				t.Errorf("Get overwritten = (%q, %v)", got, err)
			}
		})
	}
}

func TestS3StorePrefixAndPaging(t *testing.T) {
	fake := newFakeS3()
	store := NewS3Store(fake, "bucket", "blobs/")
	ctx := context.Background()

	for _, key := range []string{"k1", "k2", "k3", "k4", "k5"} {
		if err := store.Put(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}
	if _, ok := fake.objects["blobs/k1"]; !ok {
		t.Error("object key not prefixed")
	}

	keys, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if strings.Join(keys, ",") != "k1,k2,k3,k4,k5" {
		t.Errorf("List = %v", keys)
	}
	if fake.listPages != 3 {
		t.Errorf("listed %d pages, want 3", fake.listPages)
	}
}

func TestNewS3Client(t *testing.T) {
	client := NewS3Client(S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
		AccessKeyID:     "AKID",
		SecretAccessKey: "SECRET",
	})
	opts := client.Options()
	if opts.Region != "us-east-1" || !opts.UsePathStyle || aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("options = %+v", opts)
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "AKID" {
		t.Errorf("credentials = (%+v, %v)", creds, err)
	}
}

func call(t *testing.T, reg *rmi.Registry, ret variant.Type, name string, params ...*variant.Variant) rmi.Result {
	t.Helper()
	return reg.Call(context.Background(), protocol.NewRemoteMethod(ret, name, params...))
}

func TestServiceMethods(t *testing.T) {
	reg := rmi.NewRegistry(rmi.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	store := NewMemoryStore()
	if err := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(reg); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := Register(reg, store); err == nil {
		t.Error("registering twice should fail")
	}

	res := call(t, reg, variant.TypeUint32, MethodPut, variant.NewString("greeting"), variant.NewByteArray([]byte("hello")))
	if res.Faulted() || res.Value.Uint32() != 5 {
		t.Fatalf("put = (%s, %s)", res.Value, res.Fault)
	}

	res = call(t, reg, variant.TypeByteArray, MethodGet, variant.NewString("greeting"))
	if res.Faulted() || string(res.Value.Bytes()) != "hello" {
		t.Errorf("get = (%s, %s)", res.Value, res.Fault)
	}

	res = call(t, reg, variant.TypeArray, MethodList, variant.NewString("gr"))
	want := variant.NewArray(variant.NewString("greeting"))
	if res.Faulted() || !variant.Equal(res.Value, want) {
		t.Errorf("list = (%s, %s)", res.Value, res.Fault)
	}

	res = call(t, reg, variant.TypeVoid, MethodDelete, variant.NewString("greeting"))
	if res.Faulted() || !res.Value.IsNull() {
		t.Errorf("delete = (%s, %s)", res.Value, res.Fault)
	}

	faults := []struct {
		name   string
		ret    variant.Type
		method string
		params []*variant.Variant
		want   string
	}{
		{"get_missing", variant.TypeByteArray, MethodGet, []*variant.Variant{variant.NewString("greeting")}, "blob not found: greeting"},
		{"delete_missing", variant.TypeVoid, MethodDelete, []*variant.Variant{variant.NewString("nope")}, "blob not found: nope"},
		{"empty_key", variant.TypeUint32, MethodPut, []*variant.Variant{variant.NewString(""), variant.NewByteArray(nil)}, "empty key"},
		{"wrong_types", variant.TypeUint32, MethodPut, []*variant.Variant{variant.NewString("k"), variant.NewString("v")}, rmi.FaultParameterMismatch},
	}
	for _, tc := range faults {
		t.Run(tc.name, func(t *testing.T) {
			res := call(t, reg, tc.ret, tc.method, tc.params...)
			if got := res.FaultMessage(); !res.Faulted() || got != tc.want {
				t.Errorf("fault = %q, want %q", got, tc.want)
			}
		})
	}
}
