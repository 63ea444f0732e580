// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package resttrace

import (
	"errors"

	"github.com/go-resty/resty/v2"
)

type statusCoder interface {
	StatusCode() int
}

// StatusCode returns the HTTP status carried by err, if any. It understands
// resty response errors and any error in the chain with a StatusCode method.
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}

	var re *resty.ResponseError
	if errors.As(err, &re) && re.Response != nil {
		if code := re.Response.StatusCode(); code != 0 {
			return code, true
		}
	}

	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}
