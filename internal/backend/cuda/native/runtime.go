//go:build cuda

package native

/*
#cgo LDFLAGS: -lcudart

// Minimal CUDA runtime forward declarations to avoid requiring headers at compile time.
// Linker will still require libcudart when building with the cuda tag.
typedef void* cudaStream_t;
typedef int cudaError_t;

extern const char* cudaGetErrorString(cudaError_t err);
extern cudaError_t cudaGetDeviceCount(int* count);
extern cudaError_t cudaSetDevice(int device);
extern cudaError_t cudaDeviceCanAccessPeer(int* canAccess, int device, int peer);
extern cudaError_t cudaStreamCreate(cudaStream_t* stream);
extern cudaError_t cudaStreamDestroy(cudaStream_t stream);
extern cudaError_t cudaStreamSynchronize(cudaStream_t stream);
extern cudaError_t cudaMalloc(void** ptr, unsigned long long size);
extern cudaError_t cudaFree(void* ptr);
extern cudaError_t cudaMemcpy(void* dst, const void* src, unsigned long long size, int kind);
extern cudaError_t cudaMemcpyPeerAsync(void* dst, int dstDevice, const void* src, int srcDevice, unsigned long long size, cudaStream_t stream);

#define DEVCOPY_CUDA_MEMCPY_HOST_TO_DEVICE 1
#define DEVCOPY_CUDA_MEMCPY_DEVICE_TO_HOST 2
#define DEVCOPY_CUDA_MEMCPY_DEVICE_TO_DEVICE 3

static const char* devcopyCudaGetErrorString(cudaError_t err) {
	return cudaGetErrorString(err);
}

static int devcopyCudaGetDeviceCount(int* out) {
	return (int)cudaGetDeviceCount(out);
}

static int devcopyCudaSetDevice(int device) {
	return (int)cudaSetDevice(device);
}

static int devcopyCudaCanAccessPeer(int* out, int device, int peer) {
	return (int)cudaDeviceCanAccessPeer(out, device, peer);
}

static int devcopyCudaStreamCreate(cudaStream_t* out) {
	return (int)cudaStreamCreate(out);
}

static int devcopyCudaStreamDestroy(cudaStream_t stream) {
	return (int)cudaStreamDestroy(stream);
}

static int devcopyCudaStreamSynchronize(cudaStream_t stream) {
	return (int)cudaStreamSynchronize(stream);
}

static int devcopyCudaMalloc(void** ptr, unsigned long long size) {
	return (int)cudaMalloc(ptr, size);
}

static int devcopyCudaFree(void* ptr) {
	return (int)cudaFree(ptr);
}

static int devcopyCudaMemcpy(void* dst, const void* src, unsigned long long size, int kind) {
	return (int)cudaMemcpy(dst, src, size, kind);
}

static int devcopyCudaMemcpyPeer(void* dst, int dstDevice, const void* src, int srcDevice, unsigned long long size, cudaStream_t stream) {
	return (int)cudaMemcpyPeerAsync(dst, dstDevice, src, srcDevice, size, stream);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type Stream struct {
	ptr C.cudaStream_t
}

type DeviceBuffer struct {
	ptr unsafe.Pointer
}

func DeviceCount() (int, error) {
	var count C.int
	if err := cudaErr(C.devcopyCudaGetDeviceCount(&count)); err != nil {
		return 0, err
	}
	return int(count), nil
}

// SetDevice makes ordinal the current device of the calling OS thread.
func SetDevice(ordinal int) error {
	return cudaErr(C.devcopyCudaSetDevice(C.int(ordinal)))
}

func CanAccessPeer(ordinal, peer int) (bool, error) {
	var ok C.int
	if err := cudaErr(C.devcopyCudaCanAccessPeer(&ok, C.int(ordinal), C.int(peer))); err != nil {
		return false, err
	}
	return ok != 0, nil
}

func NewStream() (Stream, error) {
	var stream C.cudaStream_t
	if err := cudaErr(C.devcopyCudaStreamCreate(&stream)); err != nil {
		return Stream{}, err
	}
	return Stream{ptr: stream}, nil
}

func (s Stream) Destroy() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.devcopyCudaStreamDestroy(s.ptr))
}

func (s Stream) Synchronize() error {
	if s.ptr == nil {
		return nil
	}
	return cudaErr(C.devcopyCudaStreamSynchronize(s.ptr))
}

func AllocDevice(bytes int64) (DeviceBuffer, error) {
	if bytes <= 0 {
		return DeviceBuffer{}, fmt.Errorf("device alloc size must be > 0")
	}
	var ptr unsafe.Pointer
	if err := cudaErr(C.devcopyCudaMalloc((*unsafe.Pointer)(&ptr), C.ulonglong(bytes))); err != nil {
		return DeviceBuffer{}, err
	}
	return DeviceBuffer{ptr: ptr}, nil
}

func (b DeviceBuffer) Free() error {
	if b.ptr == nil {
		return nil
	}
	return cudaErr(C.devcopyCudaFree(b.ptr))
}

func (b DeviceBuffer) Ptr() unsafe.Pointer {
	return b.ptr
}

// Add returns the buffer address advanced by n bytes.
func (b DeviceBuffer) Add(n int) DeviceBuffer {
	return DeviceBuffer{ptr: unsafe.Add(b.ptr, n)}
}

func MemcpyH2D(dst DeviceBuffer, src unsafe.Pointer, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.devcopyCudaMemcpy(dst.ptr, src, C.ulonglong(bytes), C.DEVCOPY_CUDA_MEMCPY_HOST_TO_DEVICE))
}

func MemcpyD2H(dst unsafe.Pointer, src DeviceBuffer, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.devcopyCudaMemcpy(dst, src.ptr, C.ulonglong(bytes), C.DEVCOPY_CUDA_MEMCPY_DEVICE_TO_HOST))
}

func MemcpyD2D(dst, src DeviceBuffer, bytes int64) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.devcopyCudaMemcpy(dst.ptr, src.ptr, C.ulonglong(bytes), C.DEVCOPY_CUDA_MEMCPY_DEVICE_TO_DEVICE))
}

// MemcpyPeer enqueues a copy between two devices on stream. The caller
// synchronizes the stream.
func MemcpyPeer(dst DeviceBuffer, dstDevice int, src DeviceBuffer, srcDevice int, bytes int64, stream Stream) error {
	if bytes <= 0 {
		return nil
	}
	return cudaErr(C.devcopyCudaMemcpyPeer(dst.ptr, C.int(dstDevice), src.ptr, C.int(srcDevice), C.ulonglong(bytes), stream.ptr))
}

func cudaErr(code C.int) error {
	if code == 0 {
		return nil
	}
	msg := C.GoString(C.devcopyCudaGetErrorString(C.cudaError_t(code)))
	return fmt.Errorf("cuda runtime error %d: %s", int(code), msg)
}
