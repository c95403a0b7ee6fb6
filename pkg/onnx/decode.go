/*
 *     Copyright 2024 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package onnx

import (
	"errors"
	"fmt"
	"io"
)

// Minimal protobuf wire decoder for the subset of the ONNX ModelProto
// needed for introspection. Unknown fields, including weight payloads, are
// skipped without being copied.

// Protobuf wire types.
const (
	wireVarint = 0
	wire64Bit  = 1
	wireBytes  = 2
	wire32Bit  = 5
)

type modelProto struct {
	producerName    string
	producerVersion string
	opsetVersion    int64
	graph           *graphProto
}

type graphProto struct {
	nodes        []nodeProto
	initializers []tensorProto
	inputs       []TensorSpec
	outputs      []TensorSpec
}

type nodeProto struct {
	name    string
	opType  string
	inputs  []string
	outputs []string
}

type tensorProto struct {
	name string
	dims []int64
}

type decoder struct {
	data []byte
	pos  int
}

func decodeModel(data []byte) (*modelProto, error) {
	d := &decoder{data: data}
	m := &modelProto{}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return nil, err
		}

		switch fieldNum {
		case 2: // producer_name
			m.producerName, err = d.readString()
		case 3: // producer_version
			m.producerVersion, err = d.readString()
		case 7: // graph
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			m.graph, err = decodeGraph(data)
		case 8: // opset_import
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			var ver int64
			ver, err = decodeOpset(data)
			if ver > m.opsetVersion {
				m.opsetVersion = ver
			}
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func decodeGraph(data []byte) (*graphProto, error) {
	d := &decoder{data: data}
	g := &graphProto{}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return nil, err
		}

		switch fieldNum {
		case 1: // node
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			var node nodeProto
			node, err = decodeNode(data)
			g.nodes = append(g.nodes, node)
		case 5: // initializer
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			var tensor tensorProto
			tensor, err = decodeTensor(data)
			g.initializers = append(g.initializers, tensor)
		case 11: // input
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			var spec TensorSpec
			spec, err = decodeValueInfo(data)
			g.inputs = append(g.inputs, spec)
		case 12: // output
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			var spec TensorSpec
			spec, err = decodeValueInfo(data)
			g.outputs = append(g.outputs, spec)
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return nil, err
		}
	}

	return g, nil
}

func decodeNode(data []byte) (nodeProto, error) {
	d := &decoder{data: data}
	n := nodeProto{}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return n, err
		}

		switch fieldNum {
		case 1: // input
			var s string
			s, err = d.readString()
			n.inputs = append(n.inputs, s)
		case 2: // output
			var s string
			s, err = d.readString()
			n.outputs = append(n.outputs, s)
		case 3: // name
			n.name, err = d.readString()
		case 4: // op_type
			n.opType, err = d.readString()
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return n, err
		}
	}

	return n, nil
}

func decodeTensor(data []byte) (tensorProto, error) {
	d := &decoder{data: data}
	t := tensorProto{}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return t, err
		}

		switch fieldNum {
		case 1: // dims, packed or not
			if wireType == wireBytes {
				var data []byte
				data, err = d.readBytes()
				if err != nil {
					break
				}
				sub := &decoder{data: data}
				for sub.pos < len(sub.data) {
					v, err2 := sub.readVarint()
					if err2 != nil {
						return t, err2
					}
					t.dims = append(t.dims, v)
				}
				continue
			}
			var v int64
			v, err = d.readVarint()
			t.dims = append(t.dims, v)
		case 8: // name
			t.name, err = d.readString()
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return t, err
		}
	}

	return t, nil
}

func decodeValueInfo(data []byte) (TensorSpec, error) {
	d := &decoder{data: data}
	spec := TensorSpec{}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return spec, err
		}

		switch fieldNum {
		case 1: // name
			spec.Name, err = d.readString()
		case 2: // type
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			err = decodeType(data, &spec)
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return spec, err
		}
	}

	return spec, nil
}

// decodeType unwraps TypeProto -> TensorTypeProto -> shape.
func decodeType(data []byte, spec *TensorSpec) error {
	d := &decoder{data: data}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // tensor_type
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			err = decodeTensorType(data, spec)
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func decodeTensorType(data []byte, spec *TensorSpec) error {
	d := &decoder{data: data}

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return err
		}

		switch fieldNum {
		case 1: // elem_type
			var v int64
			v, err = d.readVarint()
			spec.DType = dtypeName(v)
		case 2: // shape
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			spec.Shape, err = decodeShape(data)
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return err
		}
	}

	return nil
}

func decodeShape(data []byte) ([]int64, error) {
	d := &decoder{data: data}
	var shape []int64

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return nil, err
		}

		switch fieldNum {
		case 1: // dim
			var data []byte
			data, err = d.readBytes()
			if err != nil {
				break
			}
			var dim int64
			dim, err = decodeDim(data)
			shape = append(shape, dim)
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return nil, err
		}
	}

	return shape, nil
}

func decodeDim(data []byte) (int64, error) {
	d := &decoder{data: data}
	dim := DynamicDim

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return dim, err
		}

		switch fieldNum {
		case 1: // dim_value
			dim, err = d.readVarint()
			if err == nil && dim <= 0 {
				dim = DynamicDim
			}
		case 2: // dim_param, a symbolic dimension such as "batch"
			_, err = d.readString()
			dim = DynamicDim
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return dim, err
		}
	}

	return dim, nil
}

func decodeOpset(data []byte) (int64, error) {
	d := &decoder{data: data}
	var version int64

	for d.pos < len(d.data) {
		fieldNum, wireType, err := d.readTag()
		if err != nil {
			return 0, err
		}

		switch fieldNum {
		case 2: // version
			version, err = d.readVarint()
		default:
			err = d.skipField(wireType)
		}

		if err != nil {
			return 0, err
		}
	}

	return version, nil
}

// dtypeName maps ONNX TensorProto.DataType values to descriptor names.
func dtypeName(v int64) string {
	switch v {
	case 1:
		return "float32"
	case 2:
		return "uint8"
	case 3:
		return "int8"
	case 6:
		return "int32"
	case 7:
		return "int64"
	case 9:
		return "bool"
	case 10:
		return "float16"
	case 11:
		return "float64"
	default:
		return fmt.Sprintf("dtype_%d", v)
	}
}

func (d *decoder) readTag() (fieldNum, wireType int, err error) {
	tag, err := d.readVarint()
	if err != nil {
		return 0, 0, err
	}

	return int(tag >> 3), int(tag & 0x7), nil
}

func (d *decoder) readVarint() (int64, error) {
	var result uint64
	var shift uint
	for {
		if d.pos >= len(d.data) {
			return 0, io.ErrUnexpectedEOF
		}
		b := d.data[d.pos]
		d.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
		shift += 7
		if shift >= 64 {
			return 0, errors.New("varint overflow")
		}
	}

	return int64(result), nil
}

func (d *decoder) readBytes() ([]byte, error) {
	length, err := d.readVarint()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, errors.New("negative length")
	}
	if length > int64(len(d.data)-d.pos) {
		return nil, io.ErrUnexpectedEOF
	}

	end := d.pos + int(length)
	data := d.data[d.pos:end]
	d.pos = end
	return data, nil
}

func (d *decoder) readString() (string, error) {
	data, err := d.readBytes()
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func (d *decoder) skipField(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := d.readVarint()
		return err
	case wire64Bit:
		if d.pos+8 > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 8
		return nil
	case wireBytes:
		_, err := d.readBytes()
		return err
	case wire32Bit:
		if d.pos+4 > len(d.data) {
			return io.ErrUnexpectedEOF
		}
		d.pos += 4
		return nil
	default:
		return fmt.Errorf("unknown wire type: %d", wireType)
	}
}
