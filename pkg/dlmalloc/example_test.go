package dlmalloc_test

import (
	"fmt"

	"github.com/joshuapare/dlmalloc/pkg/dlmalloc"
	"github.com/joshuapare/dlmalloc/sysmem"
)

func Example() {
	d := dlmalloc.New(sysmem.NewOS(), nil)
	defer d.Close()

	p := d.Malloc(64, 8)
	copy(dlmalloc.Bytes(p, 64), "hello, allocator")

	p = d.Realloc(p, 64, 8, 4096)
	fmt.Println(string(dlmalloc.Bytes(p, 16)))

	d.Free(p, 4096, 8)
	fmt.Println("in use:", d.Engine().Info().InUseBytes)
	// Output:
	// hello, allocator
	// in use: 0
}

func ExampleDlmalloc_Alloc() {
	d := dlmalloc.New(sysmem.NewOS(), nil)
	defer d.Close()

	l := dlmalloc.Layout{Size: 100, Align: 4096}
	p, err := d.Alloc(l)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("page aligned:", p%4096 == 0)
	d.Dealloc(p, l)

	_, err = d.Alloc(dlmalloc.Layout{Size: 100, Align: 24})
	fmt.Println(err)
	// Output:
	// page aligned: true
	// alignment 24 is not a power of two: dlmalloc: invalid layout
}
