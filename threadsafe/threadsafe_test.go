// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package threadsafe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Score int
}

func TestConcurrentMarshalUnmarshal(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := record{Name: "r", Score: i}
			data, err := Serialize(s, in)
			require.NoError(t, err)
			out, err := Deserialize[record](s, data)
			require.NoError(t, err)
			require.Equal(t, in, out)
		}(i)
	}
	wg.Wait()
}

func TestInstanceMethods(t *testing.T) {
	s := New()
	data, err := s.Marshal(record{Name: "a", Score: 1})
	require.NoError(t, err)
	var out record
	require.NoError(t, s.Unmarshal(data, &out))
	require.Equal(t, record{Name: "a", Score: 1}, out)
}
