// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// cidrmapgen converts a CSV table of network/prefix/timezone/x-range rows
// into the plain-text CIDR map format internal/cidrmap.Load reads, so an
// operator can maintain the geographic override table as a spreadsheet
// instead of hand-editing the loader's "NET/PFX TZ XSTART XEND" lines.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/urfave/cli"

	"github.com/xtaci/heatviz/internal/corerr"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	myApp := cli.NewApp()
	myApp.Name = "cidrmapgen"
	myApp.Usage = "generate a CIDR map file from a CSV table"
	myApp.Flags = []cli.Flag{
		cli.StringFlag{Name: "csv", Usage: "input CSV: network,prefix,tz,x_start,x_end"},
		cli.StringFlag{Name: "out", Usage: "output CIDR map path"},
	}
	myApp.Action = func(c *cli.Context) error {
		return generate(c.String("csv"), c.String("out"))
	}

	if err := myApp.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func generate(csvPath, outPath string) error {
	if csvPath == "" || outPath == "" {
		return corerr.Newf(corerr.KindInvalidConfig, "--csv and --out are both required")
	}

	in, err := os.Open(csvPath)
	if err != nil {
		return corerr.New(corerr.KindIOError, err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return corerr.New(corerr.KindIOError, err)
	}
	defer out.Close()

	fmt.Fprintln(out, "# generated by cidrmapgen -- network/prefix tz x_start x_end")

	r := csv.NewReader(in)
	r.FieldsPerRecord = 5
	rowNum := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return corerr.New(corerr.KindIOError, err)
		}
		rowNum++
		if rowNum == 1 && record[0] == "network" {
			continue // header row
		}

		if _, err := strconv.Atoi(record[2]); err != nil {
			log.Printf("row %d: skipping invalid tz %q", rowNum, record[2])
			continue
		}
		fmt.Fprintf(out, "%s/%s %s %s %s\n", record[0], record[1], record[2], record[3], record[4])
	}

	return nil
}
